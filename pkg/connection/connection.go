package connection

import (
	"fmt"
	"sync"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/constants"
)

// BaseConnection owns the two pieces of shared state of an RPC channel: the
// requests waiting for a response, and the listeners registered per live
// query. Both are touched by callers and by the read goroutine.
type BaseConnection struct {
	responseChannelsLock sync.Mutex
	lastID               uint64
	responseChannels     map[uint64]chan RPCResponse[codec.RawMessage]
	closed               bool

	listenersLock   sync.RWMutex
	listeners       map[string]map[*Registration]struct{}
	listenersClosed bool
}

func NewBaseConnection() *BaseConnection {
	return &BaseConnection{
		responseChannels: make(map[uint64]chan RPCResponse[codec.RawMessage]),
		listeners:        make(map[string]map[*Registration]struct{}),
	}
}

// CreateResponseChannel allocates the next request id and a one-slot channel
// its response will be delivered on.
func (bc *BaseConnection) CreateResponseChannel() (uint64, <-chan RPCResponse[codec.RawMessage], error) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()

	if bc.closed {
		return 0, nil, constants.ErrClosed
	}

	bc.lastID = (bc.lastID + 1) % constants.MaxRequestID
	id := bc.lastID

	if _, ok := bc.responseChannels[id]; ok {
		return 0, nil, fmt.Errorf("%w: %d", constants.ErrIDInUse, id)
	}

	ch := make(chan RPCResponse[codec.RawMessage], 1)
	bc.responseChannels[id] = ch

	return id, ch, nil
}

func (bc *BaseConnection) RemoveResponseChannel(id uint64) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()
	delete(bc.responseChannels, id)
}

// ResolveResponse hands res to the request waiting on id. It reports false
// when nobody is waiting.
func (bc *BaseConnection) ResolveResponse(id uint64, res RPCResponse[codec.RawMessage]) bool {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()

	ch, ok := bc.responseChannels[id]
	if !ok {
		return false
	}
	delete(bc.responseChannels, id)
	ch <- res

	return true
}

// PendingCount returns the number of requests waiting for a response.
func (bc *BaseConnection) PendingCount() int {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()
	return len(bc.responseChannels)
}

// Shutdown fails every pending request and ends every listener with
// ErrClosed. Later requests fail immediately.
func (bc *BaseConnection) Shutdown() {
	bc.responseChannelsLock.Lock()
	if bc.closed {
		bc.responseChannelsLock.Unlock()
		return
	}
	bc.closed = true
	for id, ch := range bc.responseChannels {
		close(ch)
		delete(bc.responseChannels, id)
	}
	bc.responseChannelsLock.Unlock()

	bc.listenersLock.Lock()
	bc.listenersClosed = true
	all := bc.listeners
	bc.listeners = make(map[string]map[*Registration]struct{})
	bc.listenersLock.Unlock()

	for _, regs := range all {
		for reg := range regs {
			reg.end(constants.ErrClosed)
		}
	}
}

// Listen registers fn for notifications of the live query liveID.
func (bc *BaseConnection) Listen(liveID string, fn func(Notification)) *Registration {
	reg := &Registration{
		id:    liveID,
		fn:    fn,
		owner: bc,
		done:  make(chan struct{}),
	}

	// checked under the same lock as the insert, so Shutdown either sees
	// this registration or Listen sees the channel closed
	bc.listenersLock.Lock()
	defer bc.listenersLock.Unlock()

	if bc.listenersClosed {
		reg.end(constants.ErrClosed)
		return reg
	}

	regs, ok := bc.listeners[liveID]
	if !ok {
		regs = make(map[*Registration]struct{})
		bc.listeners[liveID] = regs
	}
	regs[reg] = struct{}{}

	return reg
}

// Dispatch delivers n to the listeners of liveID on the calling goroutine.
// A KILLED action ends the registrations after delivery. It returns the
// number of listeners reached.
func (bc *BaseConnection) Dispatch(liveID string, n Notification) int {
	bc.listenersLock.RLock()
	regs := make([]*Registration, 0, len(bc.listeners[liveID]))
	for reg := range bc.listeners[liveID] {
		regs = append(regs, reg)
	}
	bc.listenersLock.RUnlock()

	for _, reg := range regs {
		reg.deliver(n)
	}

	if n.Action == KilledAction {
		bc.EndListeners(liveID)
	}

	return len(regs)
}

// EndListeners deregisters every listener of liveID, closing their Done
// channels without an error.
func (bc *BaseConnection) EndListeners(liveID string) {
	bc.listenersLock.Lock()
	regs := bc.listeners[liveID]
	delete(bc.listeners, liveID)
	bc.listenersLock.Unlock()

	for reg := range regs {
		reg.end(nil)
	}
}

func (bc *BaseConnection) removeListener(reg *Registration) {
	bc.listenersLock.Lock()
	defer bc.listenersLock.Unlock()

	regs, ok := bc.listeners[reg.id]
	if !ok {
		return
	}
	delete(regs, reg)
	if len(regs) == 0 {
		delete(bc.listeners, reg.id)
	}
}

// Registration is one listener of a live query.
type Registration struct {
	id    string
	fn    func(Notification)
	owner *BaseConnection

	mu    sync.Mutex
	ended bool
	err   error
	done  chan struct{}
}

// ID is the live query id the registration listens to.
func (r *Registration) ID() string {
	return r.id
}

// Done is closed once the registration stops receiving notifications.
func (r *Registration) Done() <-chan struct{} {
	return r.done
}

// Err is nil while the registration is active and after a kill or Stop.
// It is constants.ErrClosed when the channel went away.
func (r *Registration) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Stop deregisters the listener. It does not kill the live query.
func (r *Registration) Stop() {
	r.owner.removeListener(r)
	r.end(nil)
}

func (r *Registration) deliver(n Notification) {
	r.mu.Lock()
	ended := r.ended
	r.mu.Unlock()
	if ended {
		return
	}
	r.fn(n)
}

func (r *Registration) end(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	r.err = err
	close(r.done)
}
