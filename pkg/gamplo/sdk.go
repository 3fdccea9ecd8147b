// Package gamplo is the client SDK of the Gamplo platform: authentication,
// player and achievement calls, and live chat rooms.
package gamplo

import (
	"context"
	"os"
	"time"

	"github.com/gamplo/gamplo-go/internal/api"
	"github.com/gamplo/gamplo-go/internal/chat"
	"github.com/gamplo/gamplo-go/internal/config"
	"github.com/gamplo/gamplo-go/internal/httpclient"
	"github.com/gamplo/gamplo-go/internal/obs"
	"github.com/gamplo/gamplo-go/internal/session"
	"github.com/gamplo/gamplo-go/pkg/backoff"
	"github.com/gamplo/gamplo-go/pkg/model"
	"github.com/yanun0323/errors"
	"golang.org/x/text/encoding/htmlindex"
)

// SDK is one client of the platform. Every SDK owns its session and chat rooms.
type SDK struct {
	cfg    config.Config
	token  string
	args   []string
	policy backoff.Policy
	log    Logger

	store        session.Store
	client       *httpclient.Client
	auth         *api.Auth
	player       *api.Player
	achievements *api.Achievements
	chat         *chat.Service
	rooms        *chat.Registry
	metrics      *obs.Metrics
}

// New builds an SDK from the environment configuration and opts.
// It performs no network activity; call Init to authenticate.
func New(opts ...Option) (*SDK, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var cfg config.Config
	if o.cfg != nil {
		cfg = *o.cfg
	} else {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
	if o.sessionID != "" {
		cfg.SessionID = o.sessionID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enc := o.encoding
	if enc == nil && o.charset != "" {
		found, err := htmlindex.Get(o.charset)
		if err != nil {
			return nil, errors.Wrapf(err, "unknown charset %q", o.charset)
		}
		enc = found
	}

	policy := cfg.RetryPolicy()
	if o.policy != nil {
		policy = *o.policy
	}

	logger := o.logger
	if logger == nil {
		logger = chat.DefaultLogger{}
	}
	metrics := o.metrics
	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	args := o.args
	if args == nil && len(os.Args) > 1 {
		args = os.Args[1:]
	}

	store := session.NewMemoryStore()
	if cfg.SessionID != "" {
		store.SetSessionID(cfg.SessionID)
	}
	client := httpclient.New(cfg.APIURL, cfg.Timeout, o.httpClient)
	chatService := chat.NewService(client, store, cfg.APIURL, o.sendLimit)

	rooms, err := chat.NewRegistry(chat.Config{
		Opener:      client,
		Locator:     chatService.StreamURL,
		Policy:      policy,
		Encoding:    enc,
		Logger:      logger,
		Metrics:     metrics,
		OnExhausted: o.onChatError,
	})
	if err != nil {
		return nil, err
	}

	return &SDK{
		cfg:          cfg,
		token:        o.token,
		args:         args,
		policy:       policy,
		log:          logger,
		store:        store,
		client:       client,
		auth:         api.NewAuth(client),
		player:       api.NewPlayer(client, store),
		achievements: api.NewAchievements(client, store),
		chat:         chatService,
		rooms:        rooms,
		metrics:      metrics,
	}, nil
}

// Init establishes a session: an existing session id is kept, otherwise the
// configured token or the token found in the arguments or GAMPLO_TOKEN is exchanged.
// A failure is logged and returned; the SDK stays usable and Authenticate can be retried.
func (s *SDK) Init(ctx context.Context) error {
	if _, ok := s.store.SessionID(); ok {
		return nil
	}

	token := s.token
	if token == "" {
		token = s.cfg.DiscoverToken(s.args)
	}
	if token == "" {
		return nil
	}

	if _, err := s.Authenticate(ctx, token); err != nil {
		s.log.Errorf("failed to auto-initialize authentication: %v", err)
		return err
	}
	return nil
}

// SessionID returns the current session id.
func (s *SDK) SessionID() (string, bool) {
	return s.store.SessionID()
}

// Authenticate exchanges token for a session and keeps it for later calls.
func (s *SDK) Authenticate(ctx context.Context, token string) (model.AuthResponse, error) {
	resp, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if resp.SessionID == "" {
		return model.AuthResponse{}, errors.New("authentication failed: empty session id")
	}
	s.store.SetSessionID(resp.SessionID)
	return resp, nil
}

func (s *SDK) Player(ctx context.Context) (*model.Player, error) {
	return s.player.Get(ctx)
}

func (s *SDK) Achievements(ctx context.Context) ([]model.Achievement, error) {
	return s.achievements.List(ctx)
}

func (s *SDK) UnlockAchievement(ctx context.Context, key string) (model.UnlockAchievementResponse, error) {
	return s.achievements.Unlock(ctx, key)
}

// SendMessage posts message to room. Messages are limited to 500 characters.
func (s *SDK) SendMessage(ctx context.Context, room model.RoomID, message string) (model.SendMessageResponse, error) {
	return s.chat.Send(ctx, room, message)
}

// ConnectToChat streams the messages of room to handler, replacing a previous
// connection to the same room. It returns as soon as the request is validated;
// the stream reconnects in the background and is dropped once its retries are exhausted.
func (s *SDK) ConnectToChat(room model.RoomID, handler func(model.ChatMessage)) (disconnect func(), err error) {
	return s.rooms.Connect(room, handler)
}

// DisconnectFromChat stops the stream of room. Unknown rooms are ignored.
func (s *SDK) DisconnectFromChat(room model.RoomID) {
	s.rooms.Disconnect(room)
}

// DisconnectAllChat stops every chat stream.
func (s *SDK) DisconnectAllChat() {
	s.rooms.DisconnectAll()
}

// ChatRooms returns the rooms with a registered stream.
func (s *SDK) ChatRooms() []model.RoomID {
	return s.rooms.Rooms()
}

// Metrics returns a snapshot of the chat stream counters.
func (s *SDK) Metrics() obs.Snapshot {
	return s.metrics.Snapshot()
}

// Destroy stops every chat stream, forgets the session and waits for the
// background loops to exit or ctx to be done.
func (s *SDK) Destroy(ctx context.Context) error {
	s.rooms.DisconnectAll()
	s.store.Clear()
	return s.rooms.Wait(ctx)
}

// Settings is the public view of the SDK configuration.
type Settings struct {
	APIURL        string
	Timeout       time.Duration
	RetryPolicy   backoff.Policy
	Authenticated bool
}

// Config returns the effective configuration.
func (s *SDK) Config() Settings {
	_, ok := s.store.SessionID()
	return Settings{
		APIURL:        s.client.BaseURL(),
		Timeout:       s.client.Timeout(),
		RetryPolicy:   s.policy,
		Authenticated: ok,
	}
}
