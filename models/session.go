package models

// SessionSnapshot is the durable part of an authenticated session. It is
// persisted between visits and validated again on restore.
type SessionSnapshot struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	ExpiresAt    int64  `json:"expiresAt"` // epoch milliseconds
}

// Session is the full in-memory authentication state. IsLoggedIn is true
// only while Token is set and ExpiresAt lies in the future.
type Session struct {
	SessionSnapshot
	Loading    bool
	Error      string
	IsLoggedIn bool
}
