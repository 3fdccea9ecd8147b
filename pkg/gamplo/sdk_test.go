package gamplo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gamplo/gamplo-go/internal/config"
	"github.com/gamplo/gamplo-go/internal/httpclient"
	"github.com/gamplo/gamplo-go/internal/obs"
	"github.com/gamplo/gamplo-go/pkg/backoff"
	"github.com/gamplo/gamplo-go/pkg/exception"
	"github.com/gamplo/gamplo-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	*httptest.Server
	authCalls atomic.Int32
	sent      chan model.SendMessageRequest
	streams   atomic.Int32
	failChat  bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{sent: make(chan model.SendMessageRequest, 8)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sdk/auth", func(w http.ResponseWriter, r *http.Request) {
		b.authCalls.Add(1)
		var req model.AuthRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Token != "good" {
			http.Error(w, `{"error":"invalid token","code":"INVALID_TOKEN"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(model.AuthResponse{SessionID: "sess-1", Player: model.Player{ID: "p1", Username: "ana"}})
	})
	mux.HandleFunc("GET /api/sdk/player", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"player": model.Player{ID: "p1", Username: "ana"}})
	})
	mux.HandleFunc("POST /api/sdk/chat/send", func(w http.ResponseWriter, r *http.Request) {
		var req model.SendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sess-1", r.Header.Get(httpclient.SessionHeader))
		b.sent <- req
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("GET /api/sdk/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		b.streams.Add(1)
		if b.failChat {
			http.Error(w, "chat unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, "data: {\"type\":\"connected\"}\n\n")
		_, _ = fmt.Fprintf(w, "data: {\"type\":\"message\",\"data\":{\"id\":\"m1\",\"userId\":\"u2\",\"message\":\"welcome to %s\",\"timestamp\":%d}}\n\n",
			r.URL.Query().Get("roomId"), time.Now().UnixMilli())
		flusher.Flush()
		<-r.Context().Done()
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

type logSink struct {
	mu     sync.Mutex
	errors []string
}

func (l *logSink) Infof(string, ...any) {}

func (l *logSink) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *logSink) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.errors, "\n")
}

func newTestSDK(t *testing.T, b *fakeBackend, opts ...Option) *SDK {
	t.Helper()
	base := []Option{
		WithConfig(config.Config{APIURL: b.URL, Timeout: time.Second}),
		WithHTTPClient(b.Client()),
		WithArgs([]string{}),
		WithRetryPolicy(backoff.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxJitter: -1}),
		WithLogger(&logSink{}),
	}
	sdk, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, sdk.Destroy(ctx))
	})
	return sdk
}

func TestInitWithToken(t *testing.T) {
	b := newFakeBackend(t)
	sdk := newTestSDK(t, b, WithToken("good"))

	require.NoError(t, sdk.Init(t.Context()))
	id, ok := sdk.SessionID()
	require.True(t, ok)
	assert.Equal(t, "sess-1", id)
	assert.True(t, sdk.Config().Authenticated)
}

func TestInitDiscoversTokenFromArgs(t *testing.T) {
	b := newFakeBackend(t)
	sdk := newTestSDK(t, b, WithArgs([]string{"--gamplo_token", "good"}))

	require.NoError(t, sdk.Init(t.Context()))
	_, ok := sdk.SessionID()
	assert.True(t, ok)
}

func TestInitKeepsExistingSession(t *testing.T) {
	b := newFakeBackend(t)
	sdk := newTestSDK(t, b, WithSessionID("existing"), WithToken("good"))

	require.NoError(t, sdk.Init(t.Context()))
	id, _ := sdk.SessionID()
	assert.Equal(t, "existing", id)
	assert.Zero(t, b.authCalls.Load())
}

func TestInitWithoutToken(t *testing.T) {
	b := newFakeBackend(t)
	sdk := newTestSDK(t, b)

	require.NoError(t, sdk.Init(t.Context()))
	_, ok := sdk.SessionID()
	assert.False(t, ok)
	assert.Zero(t, b.authCalls.Load())
}

func TestInitFailureIsLogged(t *testing.T) {
	b := newFakeBackend(t)
	logger := &logSink{}
	sdk := newTestSDK(t, b, WithToken("bad"), WithLogger(logger))

	err := sdk.Init(t.Context())
	var apiErr *exception.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, logger.String(), "failed to auto-initialize authentication")

	_, ok := sdk.SessionID()
	assert.False(t, ok)
}

func TestChatRoundTrip(t *testing.T) {
	b := newFakeBackend(t)
	metrics := obs.NewMetrics()
	sdk := newTestSDK(t, b, WithMetrics(metrics))

	_, err := sdk.ConnectToChat(7, func(model.ChatMessage) {})
	require.ErrorIs(t, err, exception.ErrNotAuthenticated)

	_, err = sdk.Authenticate(t.Context(), "good")
	require.NoError(t, err)

	player, err := sdk.Player(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ana", player.Username)

	received := make(chan model.ChatMessage, 4)
	_, err = sdk.ConnectToChat(7, func(msg model.ChatMessage) { received <- msg })
	require.NoError(t, err)
	assert.Equal(t, []model.RoomID{7}, sdk.ChatRooms())

	select {
	case msg := <-received:
		assert.Equal(t, "welcome to 7", msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no chat message")
	}

	_, err = sdk.SendMessage(t.Context(), 7, "hello")
	require.NoError(t, err)
	assert.Equal(t, model.SendMessageRequest{RoomID: 7, Message: "hello"}, <-b.sent)

	require.NoError(t, sdk.Destroy(t.Context()))
	assert.Empty(t, sdk.ChatRooms())
	_, ok := sdk.SessionID()
	assert.False(t, ok)

	snap := sdk.Metrics()
	assert.Equal(t, uint64(1), snap.Counters[obs.MessagesDelivered])
	assert.Equal(t, uint64(1), snap.Counters[obs.ConnectionsCancelled])
	assert.Equal(t, uint64(1), snap.DeliveryLatency.Count)
}

func TestChatFailureCallback(t *testing.T) {
	b := newFakeBackend(t)
	b.failChat = true
	failures := make(chan error, 1)
	sdk := newTestSDK(t, b,
		WithSessionID("sess-1"),
		WithOnChatFailure(func(room model.RoomID, err error) {
			assert.Equal(t, model.RoomID(3), room)
			failures <- err
		}),
	)

	_, err := sdk.ConnectToChat(3, func(model.ChatMessage) {})
	require.NoError(t, err)

	select {
	case err := <-failures:
		var apiErr *exception.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("failure callback was not called")
	}
	assert.Equal(t, int32(2), b.streams.Load())
	assert.Empty(t, sdk.ChatRooms())
}

func TestSendRate(t *testing.T) {
	b := newFakeBackend(t)
	sdk := newTestSDK(t, b, WithSessionID("sess-1"), WithSendRate(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := sdk.SendMessage(t.Context(), 1, "hi")
		require.NoError(t, err)
		<-b.sent
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestSDKsAreIndependent(t *testing.T) {
	b := newFakeBackend(t)
	first := newTestSDK(t, b, WithSessionID("sess-1"))
	second := newTestSDK(t, b, WithSessionID("sess-1"))

	_, err := first.ConnectToChat(1, func(model.ChatMessage) {})
	require.NoError(t, err)

	assert.Equal(t, []model.RoomID{1}, first.ChatRooms())
	assert.Empty(t, second.ChatRooms())

	second.DisconnectAllChat()
	assert.Equal(t, []model.RoomID{1}, first.ChatRooms())

	first.DisconnectFromChat(1)
	assert.Empty(t, first.ChatRooms())
}

func TestNewOptions(t *testing.T) {
	base := WithConfig(config.Config{APIURL: "https://gamplo.com/", Timeout: time.Second})

	_, err := New(base, WithAPIURL("not a url"))
	assert.Error(t, err)

	_, err = New(base, WithCharset("no-such-charset"))
	assert.Error(t, err)

	sdk, err := New(base, WithCharset("utf-16le"), WithTimeout(3*time.Second))
	require.NoError(t, err)
	settings := sdk.Config()
	assert.Equal(t, "https://gamplo.com", settings.APIURL)
	assert.Equal(t, 3*time.Second, settings.Timeout)
	assert.False(t, settings.Authenticated)
}
