// Package store holds the client-side state of the application: one
// authentication session and one mailbox per signed-in browser session.
// All persistence and authentication are delegated to remote services
// reached through the interfaces below; every mutation of a store happens
// under its lock, so actions apply atomically and never interleave.
package store

import (
	"context"

	"flaremail/gateway"
	"flaremail/models"
)

// MailGateway is the remote persistence surface consumed by MailStore.
// Writes must become visible to subsequent reads; ReadAll returns records
// keyed by mail id; Patch touches only the named fields.
type MailGateway interface {
	WriteMail(ctx context.Context, key, partition string, mail models.Mail) error
	ReadAll(ctx context.Context, key, partition string) (map[string]models.Mail, error)
	Patch(ctx context.Context, key, partition, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, key, partition, id string) error
}

// IdentityService creates and authenticates accounts.
type IdentityService interface {
	SignUp(ctx context.Context, email, password string) (*gateway.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*gateway.AuthResult, error)
}

// SnapshotStore persists session snapshots between visits. Load reports
// found=false when no snapshot exists for the key; a non-nil error means
// the stored snapshot could not be used (corruption included).
type SnapshotStore interface {
	Save(key string, snap models.SessionSnapshot) error
	Load(key string) (snap *models.SessionSnapshot, found bool, err error)
	Delete(key string) error
}
