// Package rpc implements the WebSocket RPC channel: request/response
// correlation over one socket plus delivery of live query notifications.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/connection/gorillaws"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/logger"
)

// Channel is one RPC session. All methods are safe for concurrent use.
type Channel struct {
	*connection.BaseConnection

	socket connection.Socket
	codec  codec.Codec
	logger logger.Logger

	done      chan struct{}
	doneOnce  sync.Once
	readErr   error
	errLock   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ connection.Handler = (*Channel)(nil)
var _ connection.Sender = (*Channel)(nil)

// Connect opens a channel to uri and signs in with creds.
func Connect(ctx context.Context, uri string, creds any, opts ...connection.Option) (*Channel, error) {
	return ConnectConfig(ctx, uri, creds, connection.NewConfig(opts...))
}

// ConnectConfig is Connect with a prepared configuration.
func ConnectConfig(ctx context.Context, uri string, creds any, cfg *connection.Config) (*Channel, error) {
	c, err := Dial(ctx, uri, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrConnect, err)
	}

	if _, err := SignIn(c, ctx, creds); err != nil {
		if closeErr := c.Close(ctx); closeErr != nil {
			c.logger.Debug("failed to close channel after signin", "error", closeErr)
		}

		var rpcErr *connection.RPCError
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%w: %w: %w", constants.ErrConnect, constants.ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("%w: %w", constants.ErrConnect, err)
	}

	return c, nil
}

// Open is Connect followed by Use.
func Open(ctx context.Context, uri string, creds any, namespace, database string, opts ...connection.Option) (*Channel, error) {
	c, err := Connect(ctx, uri, creds, opts...)
	if err != nil {
		return nil, err
	}

	if err := c.Use(ctx, namespace, database); err != nil {
		if closeErr := c.Close(ctx); closeErr != nil {
			c.logger.Debug("failed to close channel after use", "error", closeErr)
		}
		return nil, err
	}

	return c, nil
}

// Dial opens the socket without signing in.
func Dial(ctx context.Context, uri string, cfg *connection.Config) (*Channel, error) {
	if cfg.Codec == nil {
		return nil, constants.ErrNoMarshaler
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	dialer := cfg.Dialer
	if dialer == nil {
		d := gorillaws.New()
		d.Logger = log
		dialer = d
	}

	c := &Channel{
		BaseConnection: connection.NewBaseConnection(),
		codec:          cfg.Codec,
		logger:         log,
		done:           make(chan struct{}),
	}

	socket, err := dialer.Dial(ctx, strings.TrimSuffix(uri, "/"), c, connection.DialOptions{
		Subprotocols: []string{cfg.Codec.Subprotocol()},
		Binary:       cfg.Codec.Binary(),
		Header:       cfg.Header,
		Compression:  cfg.Compression,
	})
	if err != nil {
		return nil, err
	}
	c.socket = socket

	if sp := socket.Subprotocol(); sp != "" && sp != cfg.Codec.Subprotocol() {
		log.Warn("server negotiated a different subprotocol", "want", cfg.Codec.Subprotocol(), "got", sp)
	}

	return c, nil
}

func (c *Channel) GetUnmarshaler() codec.Unmarshaler {
	return c.codec
}

// Send issues method and waits for its response, the channel closing, or
// ctx. There is no internal timeout.
func (c *Channel) Send(ctx context.Context, method connection.RPCFunction, params ...any) (*connection.RPCResponse[codec.RawMessage], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, responseChan, err := c.CreateResponseChannel()
	if err != nil {
		return nil, err
	}

	data, err := c.codec.Marshal(&connection.RPCRequest{
		ID:     id,
		Method: string(method),
		Params: params,
	})
	if err != nil {
		c.RemoveResponseChannel(id)
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	if err := c.socket.Write(data); err != nil {
		c.RemoveResponseChannel(id)
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.RemoveResponseChannel(id)
		return nil, ctx.Err()
	case res, open := <-responseChan:
		if !open {
			return nil, constants.ErrClosed
		}
		if res.Error != nil {
			return nil, res.Error
		}
		return &res, nil
	}
}

// OnMessage routes one inbound frame. Frames with a request id resolve the
// matching request; frames without one are live notifications and are
// handed to listeners before the next frame is read.
func (c *Channel) OnMessage(data []byte) {
	var res connection.RPCResponse[codec.RawMessage]
	if err := c.codec.Unmarshal(data, &res); err != nil {
		c.logger.Error("failed to unmarshal response", "error", err)
		return
	}

	if res.ID != nil {
		id, ok := connection.ParseRequestID(res.ID)
		if !ok {
			c.logger.Debug("dropped response with malformed id", "id", fmt.Sprint(res.ID))
			return
		}
		if !c.ResolveResponse(id, res) {
			c.logger.Debug("dropped response for unknown request", "id", id)
		}
		return
	}

	if res.Result == nil {
		if res.Error != nil {
			// some errors arrive without the id of the request that caused them
			c.logger.Error("error in response without id", "error", res.Error.Error())
		}
		return
	}

	var notification connection.Notification
	if err := c.codec.Unmarshal(*res.Result, &notification); err != nil {
		c.logger.Error("failed to unmarshal notification", "error", err)
		return
	}

	liveID, ok := notification.LiveID()
	if !ok {
		c.logger.Debug("dropped result without id", "result", string(*res.Result))
		return
	}

	if c.Dispatch(liveID, notification) == 0 {
		c.logger.Debug("no listeners for live query", "id", liveID, "action", string(notification.Action))
	}
}

// OnClose fails everything outstanding once the socket is gone.
func (c *Channel) OnClose(err error) {
	if err != nil {
		c.logger.Debug("socket closed", "error", err)
	}

	c.errLock.Lock()
	c.readErr = err
	c.errLock.Unlock()

	c.Shutdown()
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the channel can no longer be used.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the socket went away, if it was not closed cleanly.
func (c *Channel) Err() error {
	c.errLock.Lock()
	defer c.errLock.Unlock()
	return c.readErr
}

// Close sends a close frame and waits for the server to acknowledge it or
// for ctx to end. Outstanding requests fail with constants.ErrClosed.
// Calling Close more than once is a no-op.
func (c *Channel) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.socket.Close(ctx)
		c.Shutdown()
		c.doneOnce.Do(func() {
			close(c.done)
		})
	})

	return c.closeErr
}

func (c *Channel) call(ctx context.Context, method connection.RPCFunction, params ...any) (codec.RawMessage, error) {
	res, err := c.Send(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	if res.Result == nil {
		return nil, nil
	}
	return *res.Result, nil
}
