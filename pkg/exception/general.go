package exception

import "github.com/yanun0323/errors"

// Validation errors are returned before any network activity.
var (
	ErrNotAuthenticated    = errors.New("not authenticated, call authenticate first")
	ErrInvalidRoom         = errors.New("room id must be a positive integer")
	ErrNilHandler          = errors.New("message handler must not be nil")
	ErrEmptyToken          = errors.New("token is required")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrMessageTooLong      = errors.New("message too long, maximum 500 characters allowed")
	ErrEmptyAchievementKey = errors.New("achievement key is required")
)
