package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"flaremail/gateway"
	"flaremail/models"
	"flaremail/utils"
)

// SessionStore owns the authentication state of one browser session. The
// identity service issues the tokens; this store only tracks them, persists
// a snapshot for later restores and enforces expiry locally.
type SessionStore struct {
	mu        sync.Mutex
	state     models.Session
	identity  IdentityService
	snapshots SnapshotStore
	key       string // durable storage key for this browser session
}

// NewSessionStore creates a logged-out session store persisting under the
// given storage key.
func NewSessionStore(identity IdentityService, snapshots SnapshotStore, key string) *SessionStore {
	return &SessionStore{
		identity:  identity,
		snapshots: snapshots,
		key:       key,
	}
}

// State returns a copy of the current session state.
func (s *SessionStore) State() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoggedIn reports whether a non-expired session is active. A session whose
// deadline has passed is logged out on the spot, silently.
func (s *SessionStore) LoggedIn() bool {
	s.mu.Lock()
	expired := s.state.IsLoggedIn && time.Now().UnixMilli() >= s.state.ExpiresAt
	ok := s.state.IsLoggedIn && !expired
	s.mu.Unlock()

	if expired {
		s.Logout()
	}
	return ok
}

// Login authenticates against the identity service. On failure the prior
// session is left untouched and the error field carries the service message
// or a generic fallback.
func (s *SessionStore) Login(ctx context.Context, email, password string) {
	s.authenticate(ctx, email, password, s.identity.SignIn, "Login failed")
}

// Signup creates an account and signs it in, with the same semantics as
// Login.
func (s *SessionStore) Signup(ctx context.Context, email, password string) {
	s.authenticate(ctx, email, password, s.identity.SignUp, "Signup failed")
}

func (s *SessionStore) authenticate(ctx context.Context, email, password string, call func(context.Context, string, string) (*gateway.AuthResult, error), fallback string) {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()

	result, err := call(ctx, email, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false

	if err != nil {
		var svcErr *gateway.ServiceError
		if errors.As(err, &svcErr) {
			s.state.Error = svcErr.Message
		} else {
			s.state.Error = fallback
		}
		return
	}

	snap := models.SessionSnapshot{
		Token:        result.IDToken,
		RefreshToken: result.RefreshToken,
		UserID:       result.LocalID,
		Email:        result.Email,
		ExpiresAt:    time.Now().UnixMilli() + int64(result.ExpiresIn)*1000,
	}
	s.state.SessionSnapshot = snap
	s.state.IsLoggedIn = true
	s.state.Error = ""

	if err := s.snapshots.Save(s.key, snap); err != nil {
		utils.Log.Warn("Failed to persist session snapshot: %v", err)
	}
}

// Restore adopts a previously persisted snapshot when it still carries a
// token and a future expiry. Anything else resets to logged out and erases
// the persisted copy; no user-visible error is produced.
func (s *SessionStore) Restore(snap models.SessionSnapshot) bool {
	if snap.Token == "" || snap.ExpiresAt == 0 || time.Now().UnixMilli() >= snap.ExpiresAt {
		s.Logout()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SessionSnapshot = snap
	s.state.IsLoggedIn = true
	s.state.Error = ""
	return true
}

// RestoreFromStorage loads the persisted snapshot for this browser session
// and restores it. An absent snapshot is simply no session; a corrupt one
// is treated like expiry and cleared.
func (s *SessionStore) RestoreFromStorage() bool {
	snap, found, err := s.snapshots.Load(s.key)
	if err != nil {
		s.Logout()
		return false
	}
	if !found {
		return false
	}
	return s.Restore(*snap)
}

// Logout clears the session and the persisted snapshot. Calling it twice
// ends in the same state as calling it once.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	s.state = models.Session{}
	s.mu.Unlock()

	if err := s.snapshots.Delete(s.key); err != nil {
		utils.Log.Warn("Failed to clear session snapshot: %v", err)
	}
}

// ClearError resets only the error field, typically when the user edits
// the form again or switches between login and signup.
func (s *SessionStore) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()
}
