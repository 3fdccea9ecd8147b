package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gamplo/gamplo-go/internal/httpclient"
	"github.com/gamplo/gamplo-go/internal/session"
	"github.com/gamplo/gamplo-go/pkg/exception"
	"github.com/gamplo/gamplo-go/pkg/model"
	"golang.org/x/time/rate"
)

const (
	SendPath   = "/api/sdk/chat/send"
	StreamPath = "/api/sdk/chat/stream"

	// MaxMessageLength is counted in characters, not bytes.
	MaxMessageLength = 500
)

// Poster sends a JSON request body.
type Poster interface {
	Post(ctx context.Context, path string, body any, headers map[string]string, out any) error
}

// Service posts chat messages and resolves room stream urls.
type Service struct {
	client  Poster
	store   session.Store
	baseURL string
	limiter *rate.Limiter
}

// NewService creates a chat service. baseURL is the backend root used for stream urls.
// A non-nil limiter paces Send; nil sends without waiting.
func NewService(client Poster, store session.Store, baseURL string, limiter *rate.Limiter) *Service {
	return &Service{
		client:  client,
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: limiter,
	}
}

// Send posts message to room.
func (s *Service) Send(ctx context.Context, room model.RoomID, message string) (model.SendMessageResponse, error) {
	sessionID, ok := s.store.SessionID()
	if !ok {
		return model.SendMessageResponse{}, exception.ErrNotAuthenticated
	}
	if !room.Valid() {
		return model.SendMessageResponse{}, fmt.Errorf("%w: got %d", exception.ErrInvalidRoom, room)
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return model.SendMessageResponse{}, exception.ErrMessageTooLong
	}
	if strings.TrimSpace(message) == "" {
		return model.SendMessageResponse{}, exception.ErrEmptyMessage
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return model.SendMessageResponse{}, fmt.Errorf("send message: %w", err)
		}
	}

	var resp model.SendMessageResponse
	err := s.client.Post(ctx, SendPath,
		model.SendMessageRequest{RoomID: room, Message: message},
		map[string]string{httpclient.SessionHeader: sessionID},
		&resp,
	)
	if err != nil {
		var apiErr *exception.APIError
		if errors.As(err, &apiErr) {
			return model.SendMessageResponse{}, err
		}
		return model.SendMessageResponse{}, fmt.Errorf("send message: %w", err)
	}
	return resp, nil
}

// StreamURL returns the stream url of room for the current session.
func (s *Service) StreamURL(room model.RoomID) (string, error) {
	sessionID, ok := s.store.SessionID()
	if !ok {
		return "", exception.ErrNotAuthenticated
	}
	query := url.Values{}
	query.Set("roomId", strconv.FormatInt(int64(room), 10))
	query.Set("session", sessionID)
	return s.baseURL + StreamPath + "?" + query.Encode(), nil
}
