// Package gws implements connection.Dialer on lxzan/gws.
package gws

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Chooks22/surrealism/pkg/connection"
	"github.com/Chooks22/surrealism/pkg/constants"
	"github.com/Chooks22/surrealism/pkg/logger"
	"github.com/lxzan/gws"
)

const defaultHandshakeTimeout = 5 * time.Second

type Dialer struct {
	HandshakeTimeout time.Duration
	Logger           logger.Logger
}

var _ connection.Dialer = (*Dialer)(nil)

func New() *Dialer {
	return &Dialer{HandshakeTimeout: defaultHandshakeTimeout, Logger: logger.Nop()}
}

// Dial opens the socket. gws dials without a context, so ctx only bounds the
// handshake through HandshakeTimeout and is checked before reading starts.
func (d *Dialer) Dial(ctx context.Context, uri string, h connection.Handler, opts connection.DialOptions) (connection.Socket, error) {
	header := http.Header{}
	for k, v := range opts.Header {
		header[k] = v
	}
	if len(opts.Subprotocols) > 0 {
		header.Set("Sec-WebSocket-Protocol", strings.Join(opts.Subprotocols, ", "))
	}

	timeout := d.HandshakeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}

	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Socket{
		handler: h,
		opcode:  gws.OpcodeText,
		logger:  log,
		done:    make(chan struct{}),
	}
	if opts.Binary {
		s.opcode = gws.OpcodeBinary
	}

	conn, res, err := gws.NewClient(&websocketHandler{socket: s}, &gws.ClientOption{
		Addr:             uri,
		RequestHeader:    header,
		HandshakeTimeout: timeout,
		PermessageDeflate: gws.PermessageDeflate{
			Enabled: opts.Compression,
		},
	})
	if err != nil {
		return nil, err
	}
	if res != nil {
		s.subprotocol = res.Header.Get("Sec-WebSocket-Protocol")
	}
	s.conn = conn

	if err := ctx.Err(); err != nil {
		conn.NetConn().Close()
		return nil, err
	}

	go conn.ReadLoop()

	return s, nil
}

type Socket struct {
	conn        *gws.Conn
	handler     connection.Handler
	opcode      gws.Opcode
	subprotocol string
	logger      logger.Logger

	done       chan struct{}
	doneOnce   sync.Once
	closeOnce  sync.Once
	closeError error
}

var _ connection.Socket = (*Socket)(nil)

func (s *Socket) Write(data []byte) error {
	return s.conn.WriteMessage(s.opcode, data)
}

func (s *Socket) Subprotocol() string {
	return s.subprotocol
}

func (s *Socket) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.conn.WriteClose(constants.CloseMessageCode, nil)

		select {
		case <-s.done:
		case <-ctx.Done():
		}

		if err := s.conn.NetConn().Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeError = err
		}
	})

	return s.closeError
}

type websocketHandler struct {
	gws.BuiltinEventHandler
	socket *Socket
}

func (h *websocketHandler) OnMessage(_ *gws.Conn, message *gws.Message) {
	// the buffer is pooled and reused once the message is closed
	data := bytes.Clone(message.Bytes())
	message.Close()
	h.socket.handler.OnMessage(data)
}

func (h *websocketHandler) OnClose(_ *gws.Conn, err error) {
	h.socket.doneOnce.Do(func() {
		close(h.socket.done)
	})
	h.socket.handler.OnClose(closeReason(err))
}

func closeReason(err error) error {
	var ce *gws.CloseError
	if errors.As(err, &ce) && (ce.Code == 1000 || ce.Code == 1001) {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
