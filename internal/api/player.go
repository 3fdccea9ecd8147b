package api

import (
	"context"

	"github.com/gamplo/gamplo-go/internal/session"
	"github.com/gamplo/gamplo-go/pkg/model"
)

const PlayerPath = "/api/sdk/player"

// Player reads the authenticated player.
type Player struct {
	client Requester
	store  session.Store
}

func NewPlayer(client Requester, store session.Store) *Player {
	return &Player{client: client, store: store}
}

// Get returns the current player. The result is nil when the backend has no player for the session.
func (p *Player) Get(ctx context.Context) (*model.Player, error) {
	headers, err := sessionHeaders(p.store)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Player *model.Player `json:"player"`
	}
	if err := p.client.Get(ctx, PlayerPath, headers, &resp); err != nil {
		return nil, wrap(err, "get player")
	}
	return resp.Player, nil
}
