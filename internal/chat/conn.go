package chat

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/gamplo/gamplo-go/internal/obs"
	"github.com/gamplo/gamplo-go/pkg/backoff"
	"github.com/gamplo/gamplo-go/pkg/model"
	"github.com/gamplo/gamplo-go/pkg/sse"
	"golang.org/x/text/encoding"
)

// State is the lifecycle position of a Conn.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	// StateClosed means the server ended the stream without an error.
	StateClosed
	// StateFailed means every attempt failed.
	StateFailed
	// StateCancelled means the connection was disconnected or superseded.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s >= StateClosed
}

// Handler receives the messages of one room, in stream order.
type Handler func(msg model.ChatMessage)

// Opener opens the event stream at url. The stream must be aborted when ctx is done.
type Opener interface {
	OpenStream(ctx context.Context, url string) (io.ReadCloser, error)
}

// Conn is one subscription to one room.
type Conn struct {
	id      uint64
	room    model.RoomID
	url     string
	handler Handler

	opener   Opener
	policy   backoff.Policy
	encoding encoding.Encoding
	log      Logger
	metrics  *obs.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
	done   chan struct{}
	err    error

	// onFailed runs after the retries are exhausted, before done is closed.
	onFailed func(c *Conn, err error)
}

// ID returns the sequence id of the connection.
func (c *Conn) ID() uint64 {
	return c.id
}

// Room returns the room the connection subscribes to.
func (c *Conn) Room() model.RoomID {
	return c.room
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Done is closed once the background loop has exited and released the stream.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the last transport error of a failed connection. It is only meaningful after Done is closed.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Conn) run() {
	defer close(c.done)

	policy := c.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.metrics.Inc(obs.Retries)
		c.log.Infof("chat room %d (conn #%d): attempt %d failed: %v, retrying in %s", c.room, c.id, attempt+1, err, wait)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}

	_, err := backoff.Retry(c.ctx, policy, c.attempt)
	switch {
	case c.ctx.Err() != nil:
		c.setState(StateCancelled)
		c.metrics.Inc(obs.ConnectionsCancelled)
	case err != nil:
		c.err = err
		c.setState(StateFailed)
		c.metrics.Inc(obs.ConnectionsFailed)
		c.log.Errorf("chat connection failed permanently: room %d (conn #%d): %v", c.room, c.id, err)
		if c.onFailed != nil {
			c.onFailed(c, err)
		}
	default:
		c.setState(StateClosed)
		c.metrics.Inc(obs.ConnectionsClosed)
		c.log.Infof("chat room %d (conn #%d): stream closed by server", c.room, c.id)
	}
	c.cancel()
}

func (c *Conn) attempt(ctx context.Context) (struct{}, error) {
	c.setState(StateConnecting)
	c.metrics.Inc(obs.ConnectAttempts)

	body, err := c.opener.OpenStream(ctx, c.url)
	if err != nil {
		return struct{}{}, err
	}
	// unblocks a pending Read once ctx is done
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer func() {
		stop()
		_ = body.Close()
	}()

	c.setState(StateStreaming)
	c.metrics.Inc(obs.StreamsOpened)
	return struct{}{}, c.consume(ctx, body)
}

// consume delivers the messages of body until it ends. Lines that are not
// message events are skipped; a malformed line does not end the stream.
func (c *Conn) consume(ctx context.Context, body io.Reader) error {
	for line, err := range sse.Lines(ctx, body, c.encoding) {
		if err != nil {
			return err
		}

		payload, ok := sse.Payload(line)
		if !ok {
			c.metrics.Inc(obs.EventsIgnored)
			continue
		}

		event, err := ParseEvent(payload)
		if err != nil {
			c.metrics.Inc(obs.ParseFailures)
			c.log.Errorf("chat room %d: skip event line: %v", c.room, err)
			continue
		}

		msg, ok := event.Message()
		if !ok {
			c.metrics.Inc(obs.EventsIgnored)
			continue
		}

		if ctx.Err() != nil {
			break
		}
		c.handler(msg)
		c.metrics.Inc(obs.MessagesDelivered)
		c.metrics.ObserveDelivery(msg.Time(), time.Now())
	}
	return ctx.Err()
}
