package api

import (
	"context"

	"github.com/gamplo/gamplo-go/internal/session"
	"github.com/gamplo/gamplo-go/pkg/exception"
	"github.com/gamplo/gamplo-go/pkg/model"
)

const (
	AchievementsPath = "/api/sdk/achievements"
	UnlockPath       = "/api/sdk/achievements/unlock"
)

// Achievements lists and unlocks game achievements.
type Achievements struct {
	client Requester
	store  session.Store
}

func NewAchievements(client Requester, store session.Store) *Achievements {
	return &Achievements{client: client, store: store}
}

// List returns every achievement of the game with the player's unlock state.
func (a *Achievements) List(ctx context.Context) ([]model.Achievement, error) {
	headers, err := sessionHeaders(a.store)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Achievements []model.Achievement `json:"achievements"`
	}
	if err := a.client.Get(ctx, AchievementsPath, headers, &resp); err != nil {
		return nil, wrap(err, "get achievements")
	}
	return resp.Achievements, nil
}

// Unlock unlocks the achievement identified by key. Unlocking twice is not an error;
// the response reports AlreadyUnlocked instead.
func (a *Achievements) Unlock(ctx context.Context, key string) (model.UnlockAchievementResponse, error) {
	headers, err := sessionHeaders(a.store)
	if err != nil {
		return model.UnlockAchievementResponse{}, err
	}
	if key == "" {
		return model.UnlockAchievementResponse{}, exception.ErrEmptyAchievementKey
	}

	var resp model.UnlockAchievementResponse
	if err := a.client.Post(ctx, UnlockPath, model.UnlockAchievementRequest{Key: key}, headers, &resp); err != nil {
		return model.UnlockAchievementResponse{}, wrap(err, "unlock achievement")
	}
	return resp, nil
}
