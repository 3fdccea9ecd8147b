package api

import (
	"context"
	"fmt"

	"github.com/gamplo/gamplo-go/pkg/exception"
	"github.com/gamplo/gamplo-go/pkg/model"
)

const AuthPath = "/api/sdk/auth"

// Auth exchanges platform tokens for sessions.
type Auth struct {
	client Requester
}

func NewAuth(client Requester) *Auth {
	return &Auth{client: client}
}

// Authenticate exchanges token for a session. It does not store the session.
func (a *Auth) Authenticate(ctx context.Context, token string) (model.AuthResponse, error) {
	if token == "" {
		return model.AuthResponse{}, exception.ErrEmptyToken
	}

	var resp model.AuthResponse
	if err := a.client.Post(ctx, AuthPath, model.AuthRequest{Token: token}, nil, &resp); err != nil {
		return model.AuthResponse{}, fmt.Errorf("authentication failed: %w", err)
	}
	return resp, nil
}
