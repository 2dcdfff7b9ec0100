package store

import (
	"sync"
)

// App bundles the per-browser-session stores: the authentication session
// and, once an identity is active, the mailbox state for it.
type App struct {
	Session *SessionStore

	manager *Manager
	mu      sync.Mutex
	mail    *MailStore
}

// Mail returns the mail store for the active identity, creating it on
// first use. It returns nil while logged out, and a change of identity
// replaces the store so no state leaks between accounts.
func (a *App) Mail() *MailStore {
	if !a.Session.LoggedIn() {
		a.mu.Lock()
		a.mail = nil
		a.mu.Unlock()
		return nil
	}
	email := a.Session.State().Email

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mail == nil || a.mail.Email() != email {
		a.mail = NewMailStore(a.manager.gateway, email)
		if hook := a.manager.onMailChange; hook != nil {
			a.mail.SetOnChange(func(view string) { hook(email, view) })
		}
	}
	return a.mail
}

// Manager is the process-wide registry of state containers, one per
// browser session id. Handlers reach all state through it; nothing else in
// the application holds store references of its own.
type Manager struct {
	identity  IdentityService
	gateway   MailGateway
	snapshots SnapshotStore

	onMailChange func(email, view string)

	mu   sync.Mutex
	apps map[string]*App
}

// NewManager wires the registry to its external collaborators.
func NewManager(identity IdentityService, gateway MailGateway, snapshots SnapshotStore) *Manager {
	return &Manager{
		identity:  identity,
		gateway:   gateway,
		snapshots: snapshots,
		apps:      make(map[string]*App),
	}
}

// SetOnMailChange registers a hook invoked after a mailbox change has been
// applied for an identity. Must be called before any App is created.
func (m *Manager) SetOnMailChange(fn func(email, view string)) {
	m.onMailChange = fn
}

// App returns the state container for the given browser session id,
// creating it on first sight. Creation attempts a session restore from
// durable storage, so a returning browser is signed in again when its
// snapshot is still valid.
func (m *Manager) App(sessionID string) *App {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.apps[sessionID]
	if !ok {
		app = &App{
			Session: NewSessionStore(m.identity, m.snapshots, sessionID),
			manager: m,
		}
		app.Session.RestoreFromStorage()
		m.apps[sessionID] = app
	}
	return app
}

// Drop discards the state container for a browser session, typically on
// logout.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	delete(m.apps, sessionID)
	m.mu.Unlock()
}
