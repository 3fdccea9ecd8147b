// Package api implements the one-shot backend calls: authentication, player
// lookup and achievements.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamplo/gamplo-go/internal/httpclient"
	"github.com/gamplo/gamplo-go/internal/session"
	"github.com/gamplo/gamplo-go/pkg/exception"
)

// Requester sends JSON requests to the backend.
type Requester interface {
	Get(ctx context.Context, path string, headers map[string]string, out any) error
	Post(ctx context.Context, path string, body any, headers map[string]string, out any) error
}

func sessionHeaders(store session.Store) (map[string]string, error) {
	sessionID, ok := store.SessionID()
	if !ok {
		return nil, exception.ErrNotAuthenticated
	}
	return map[string]string{httpclient.SessionHeader: sessionID}, nil
}

// wrap adds the operation name to err, except for backend status errors which are returned as is.
func wrap(err error, op string) error {
	var apiErr *exception.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
