package fakesdb

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/Chooks22/surrealism/pkg/connection"
)

// FailureType represents the type of failure to inject during request processing
type FailureType string

const (
	// FailureRequestDelay delays before processing the request
	FailureRequestDelay FailureType = "request_delay"
	// FailureResponseDelay sends the response later, in the background
	FailureResponseDelay FailureType = "response_delay"
	// FailureNoResponse swallows the request
	FailureNoResponse FailureType = "no_response"
	// FailureInvalidResponse sends random bytes instead of a response
	FailureInvalidResponse FailureType = "invalid_response"
	// FailureWebSocketClose sends a close frame with configurable code/reason
	FailureWebSocketClose FailureType = "websocket_close"
	// FailureDropConnection closes the underlying network connection
	FailureDropConnection FailureType = "drop_connection"
)

// FailureConfig defines how and when to inject a specific failure type
type FailureConfig struct {
	Type FailureType
	// Probability of triggering this failure (0.0 to 1.0)
	Probability float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
	// CloseCode defaults to 1001 for FailureWebSocketClose
	CloseCode   uint16
	CloseReason string
}

// MatchMethod creates a RequestMatcher that matches only by method name
func MatchMethod(method string) RequestMatcher {
	return RequestMatcher{Method: method}
}

// MatchMethodWithParams creates a RequestMatcher that matches by method name
// and parameter values
func MatchMethodWithParams(method string, matcher func(params []any) bool) RequestMatcher {
	return RequestMatcher{Method: method, Matcher: matcher}
}

// SimpleStubResponse creates a stub answering method with response
func SimpleStubResponse(method string, response any) StubResponse {
	return StubResponse{Matcher: MatchMethod(method), Result: response}
}

// ErrorStubResponse creates a stub answering method with an RPC error
func ErrorStubResponse(method string, code int, message string) StubResponse {
	return StubResponse{
		Matcher: MatchMethod(method),
		Error:   &connection.RPCError{Code: code, Message: message},
	}
}

func (s *Server) matchStub(req *connection.RPCRequest) *StubResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.stubResponses {
		stub := s.stubResponses[i]
		if stub.Matcher.Method != req.Method {
			continue
		}
		if stub.Matcher.Matcher == nil || stub.Matcher.Matcher(req.Params) {
			return &stub
		}
	}
	return nil
}

// applyFailure returns an error when the request must not be answered.
func (c *rpcConn) applyFailure(failure FailureConfig, req *connection.RPCRequest, respond func()) error {
	switch failure.Type {
	case FailureRequestDelay:
		time.Sleep(randomDuration(failure.MinDelay, failure.MaxDelay))

	case FailureResponseDelay:
		go func() {
			time.Sleep(randomDuration(failure.MinDelay, failure.MaxDelay))
			respond()
		}()
		return fmt.Errorf("response delayed")

	case FailureNoResponse:
		return fmt.Errorf("no response for %s", req.Method)

	case FailureInvalidResponse:
		data := make([]byte, 100)
		if _, err := rand.Read(data); err != nil {
			log.Printf("Error generating invalid response: %v", err)
		}
		if err := c.socket.WriteMessage(c.opcode(), data); err != nil {
			log.Printf("Error writing invalid response: %v", err)
		}
		return fmt.Errorf("invalid response sent")

	case FailureWebSocketClose:
		code := failure.CloseCode
		if code == 0 {
			code = 1001
		}
		reason := failure.CloseReason
		if reason == "" {
			reason = "failure injection"
		}
		c.socket.WriteClose(code, []byte(reason))
		return fmt.Errorf("websocket close")

	case FailureDropConnection:
		c.socket.NetConn().Close()
		return fmt.Errorf("connection dropped")
	}

	return nil
}

func shouldTriggerFailure(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<53))
	return float64(n.Int64())/float64(1<<53) < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(dMax-dMin)))
	return dMin + time.Duration(n.Int64())
}
