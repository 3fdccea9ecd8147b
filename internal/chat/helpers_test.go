package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gamplo/gamplo-go/internal/obs"
	"github.com/gamplo/gamplo-go/pkg/backoff"
	"github.com/gamplo/gamplo-go/pkg/model"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type openFunc func(ctx context.Context, call int) (io.ReadCloser, error)

type fakeOpener struct {
	mu     sync.Mutex
	stamps []time.Time
	urls   []string
	open   openFunc
}

func newFakeOpener(open openFunc) *fakeOpener {
	return &fakeOpener{open: open}
}

func (f *fakeOpener) OpenStream(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	call := len(f.stamps)
	f.stamps = append(f.stamps, time.Now())
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.open(ctx, call)
}

func (f *fakeOpener) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stamps)
}

func (f *fakeOpener) Stamps() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.stamps...)
}

// blockingBody returns a stream that never sends anything.
func blockingBody(context.Context, int) (io.ReadCloser, error) {
	pr, _ := io.Pipe()
	return pr, nil
}

func stringBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

type captureLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *captureLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Errors() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.errors, "\n")
}

type recorder struct {
	mu   sync.Mutex
	msgs []model.ChatMessage
	ch   chan model.ChatMessage
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan model.ChatMessage, 64)}
}

func (r *recorder) Handle(msg model.ChatMessage) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	r.ch <- msg
}

func (r *recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	texts := make([]string, 0, len(r.msgs))
	for _, msg := range r.msgs {
		texts = append(texts, msg.Message)
	}
	return texts
}

func (r *recorder) Next(t *testing.T) model.ChatMessage {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for message")
		return model.ChatMessage{}
	}
}

type testRegistry struct {
	*Registry
	opener  *fakeOpener
	logger  *captureLogger
	metrics *obs.Metrics
}

func testLocator(room model.RoomID) (string, error) {
	return fmt.Sprintf("http://chat.test/stream?roomId=%d", room), nil
}

func newTestRegistry(t *testing.T, opener *fakeOpener, configure ...func(*Config)) *testRegistry {
	t.Helper()
	logger := &captureLogger{}
	metrics := obs.NewMetrics()
	cfg := Config{
		Opener:  opener,
		Locator: testLocator,
		Policy:  backoff.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxJitter: -1},
		Logger:  logger,
		Metrics: metrics,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	reg, err := NewRegistry(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		reg.Close()
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		require.NoError(t, reg.Wait(ctx))
	})
	return &testRegistry{Registry: reg, opener: opener, logger: logger, metrics: metrics}
}

func waitDone(t *testing.T, conn *Conn) {
	t.Helper()
	select {
	case <-conn.Done():
	case <-time.After(waitTimeout):
		t.Fatalf("connection for room %d did not stop, state %s", conn.Room(), conn.State())
	}
}

func messageLine(id, text string) string {
	return fmt.Sprintf(`data: {"type":"message","data":{"id":%q,"userId":"u1","username":"a","displayName":"A","image":"","message":%q,"timestamp":1000}}`+"\n", id, text)
}
