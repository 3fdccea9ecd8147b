package model

// Player is the authenticated user.
type Player struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image"`
}

// AuthRequest exchanges a platform token for a session.
type AuthRequest struct {
	Token string `json:"token"`
}

// AuthResponse carries the new session id and the player it belongs to.
type AuthResponse struct {
	SessionID string `json:"sessionId"`
	Player    Player `json:"player"`
}

// Achievement is a game achievement, optionally with the player's unlock state.
type Achievement struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
	Hidden      bool   `json:"hidden"`
	Unlocked    bool   `json:"unlocked,omitempty"`
	UnlockedAt  string `json:"unlockedAt,omitempty"`
}

// UnlockAchievementRequest unlocks an achievement by key.
type UnlockAchievementRequest struct {
	Key string `json:"key"`
}

// UnlockedAchievement is the achievement summary returned by an unlock.
type UnlockedAchievement struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
}

// UnlockAchievementResponse reports the outcome of an unlock.
type UnlockAchievementResponse struct {
	Success         bool                `json:"success"`
	AlreadyUnlocked bool                `json:"alreadyUnlocked"`
	Achievement     UnlockedAchievement `json:"achievement"`
}
