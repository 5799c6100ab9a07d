// Package identity provides the sign-in collaborators behind the store: a
// browser-based OAuth flow for hosted backends and a zero-ceremony local
// identity for the offline sqlite backend.
package identity

import (
	"context"
	"strings"

	"github.com/hylla/syssla/internal/store"
)

// defaultLocalUserID owns every row in a single-user offline database.
const defaultLocalUserID = "local"

// Local is the offline identity: one fixed user, always signed in.
type Local struct {
	user store.User
}

// NewLocal builds the offline identity. An empty id falls back to the
// default local owner.
func NewLocal(id, name string) *Local {
	id = strings.TrimSpace(id)
	if id == "" {
		id = defaultLocalUserID
	}
	return &Local{user: store.User{ID: id, Name: strings.TrimSpace(name)}}
}

// CurrentUser returns the fixed local user.
func (l *Local) CurrentUser() (store.User, bool) {
	return l.user, true
}

// SignIn is a no-op for the local identity.
func (l *Local) SignIn(ctx context.Context) (store.User, error) {
	return l.user, nil
}

// SignOut is a no-op: the offline database has exactly one owner.
func (l *Local) SignOut(ctx context.Context) error {
	return nil
}
