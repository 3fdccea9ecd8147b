package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gamplo/gamplo-go/internal/obs"
	"github.com/gamplo/gamplo-go/pkg/backoff"
	"github.com/gamplo/gamplo-go/pkg/exception"
	"github.com/gamplo/gamplo-go/pkg/model"
	"golang.org/x/text/encoding"
)

// Locator resolves the stream url of a room. It runs synchronously in Connect,
// so an error such as a missing session is returned to the caller.
type Locator func(room model.RoomID) (string, error)

// Config defines the registry runtime configuration.
type Config struct {
	// Opener opens room streams. Required.
	Opener Opener
	// Locator builds room stream urls. Required.
	Locator Locator
	// Policy wraps every connection attempt. Optional; the zero value means backoff.DefaultPolicy().
	Policy backoff.Policy
	// Encoding of the stream text. Optional; default UTF-8.
	Encoding encoding.Encoding
	// Logger receives background diagnostics. Optional; default DefaultLogger.
	Logger Logger
	// Metrics collects stream counters. Optional; nil disables collection.
	Metrics *obs.Metrics
	// OnExhausted is called when a room is dropped after its retries are exhausted. Optional.
	OnExhausted func(room model.RoomID, err error)
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = DefaultLogger{}
	}
	return c
}

// Registry keeps at most one live Conn per room.
type Registry struct {
	cfg Config
	seq obs.SequenceGenerator

	mu     sync.Mutex
	conns  map[model.RoomID]*Conn
	closed bool
	wg     sync.WaitGroup
}

// NewRegistry validates config and builds a registry.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Opener == nil {
		return nil, exception.ErrNilOpener
	}
	if cfg.Locator == nil {
		return nil, exception.ErrNilLocator
	}
	return &Registry{
		cfg:   cfg.withDefaults(),
		conns: make(map[model.RoomID]*Conn),
	}, nil
}

// Connect subscribes handler to room and returns a function that disconnects the room.
// A previous connection to the same room is cancelled and replaced.
// The stream is opened in the background; Connect never waits for the first byte.
func (r *Registry) Connect(room model.RoomID, handler Handler) (func(), error) {
	if !room.Valid() {
		return nil, fmt.Errorf("%w: got %d", exception.ErrInvalidRoom, room)
	}
	if handler == nil {
		return nil, exception.ErrNilHandler
	}
	if r.isClosed() {
		return nil, exception.ErrRegistryClosed
	}

	url, err := r.cfg.Locator(room)
	if err != nil {
		return nil, err
	}

	conn := r.newConn(room, url, handler)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.cancel()
		return nil, exception.ErrRegistryClosed
	}
	if prev, ok := r.conns[room]; ok {
		prev.cancel()
	}
	r.conns[room] = conn
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		conn.run()
	}()

	return func() { r.Disconnect(room) }, nil
}

func (r *Registry) newConn(room model.RoomID, url string, handler Handler) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		id:       r.seq.Next(),
		room:     room,
		url:      url,
		handler:  handler,
		opener:   r.cfg.Opener,
		policy:   r.cfg.Policy,
		encoding: r.cfg.Encoding,
		log:      r.cfg.Logger,
		metrics:  r.cfg.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		onFailed: r.drop,
	}
	return conn
}

// drop removes a failed connection unless it was already replaced.
func (r *Registry) drop(conn *Conn, err error) {
	r.mu.Lock()
	if r.conns[conn.room] == conn {
		delete(r.conns, conn.room)
	}
	r.mu.Unlock()

	if r.cfg.OnExhausted != nil {
		r.cfg.OnExhausted(conn.room, err)
	}
}

// Disconnect cancels and removes the connection of room. It is a no-op for an unknown room.
func (r *Registry) Disconnect(room model.RoomID) {
	r.mu.Lock()
	conn, ok := r.conns[room]
	delete(r.conns, room)
	r.mu.Unlock()

	if ok {
		conn.cancel()
	}
}

// DisconnectAll cancels and removes every connection.
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[model.RoomID]*Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.cancel()
	}
}

// Lookup returns the registered connection of room.
func (r *Registry) Lookup(room model.RoomID) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[room]
	return conn, ok
}

// Rooms returns the registered rooms in ascending order.
func (r *Registry) Rooms() []model.RoomID {
	r.mu.Lock()
	rooms := make([]model.RoomID, 0, len(r.conns))
	for room := range r.conns {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	slices.Sort(rooms)
	return rooms
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Wait blocks until every background loop started so far has exited, or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects every room and rejects further connects.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.DisconnectAll()
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
