// Package gorillaws implements connection.Dialer on gorilla/websocket.
package gorillaws

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/logger"

	gorilla "github.com/gorilla/websocket"
)

// DefaultDialer is the gorilla dialer sockets are opened with. Subprotocols
// and compression are overridden per dial.
var DefaultDialer = &gorilla.Dialer{
	Proxy:            gorilla.DefaultDialer.Proxy,
	HandshakeTimeout: gorilla.DefaultDialer.HandshakeTimeout,
}

type Dialer struct {
	Dialer *gorilla.Dialer
	Logger logger.Logger
}

var _ connection.Dialer = (*Dialer)(nil)

func New() *Dialer {
	return &Dialer{Dialer: DefaultDialer, Logger: logger.Nop()}
}

func (d *Dialer) Dial(ctx context.Context, uri string, h connection.Handler, opts connection.DialOptions) (connection.Socket, error) {
	dialer := *DefaultDialer
	if d.Dialer != nil {
		dialer = *d.Dialer
	}
	dialer.Subprotocols = opts.Subprotocols
	dialer.EnableCompression = opts.Compression

	conn, res, err := dialer.DialContext(ctx, uri, opts.Header)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Socket{
		conn:        conn,
		handler:     h,
		messageType: gorilla.TextMessage,
		logger:      log,
		done:        make(chan struct{}),
	}
	if opts.Binary {
		s.messageType = gorilla.BinaryMessage
	}

	go s.readLoop()

	return s, nil
}

type Socket struct {
	conn        *gorilla.Conn
	handler     connection.Handler
	messageType int
	logger      logger.Logger

	// gorilla allows one concurrent writer
	writeLock sync.Mutex

	// done is closed when readLoop returns
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ connection.Socket = (*Socket)(nil)

func (s *Socket) Write(data []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.conn.WriteMessage(s.messageType, data)
}

func (s *Socket) Subprotocol() string {
	return s.conn.Subprotocol()
}

// Close writes a close frame and waits for the read loop to observe the
// peer's close, or for ctx to end. The network connection is closed either
// way.
func (s *Socket) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		deadline, _ := ctx.Deadline()
		msg := gorilla.FormatCloseMessage(constants.CloseMessageCode, "")
		if err := s.conn.WriteControl(gorilla.CloseMessage, msg, deadline); err != nil {
			s.logger.Debug("failed to write close message", "error", err)
		}

		select {
		case <-s.done:
		case <-ctx.Done():
		}

		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	})

	return s.closeErr
}

func (s *Socket) readLoop() {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handler.OnClose(closeReason(err))
			return
		}
		s.handler.OnMessage(data)
	}
}

func closeReason(err error) error {
	if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
