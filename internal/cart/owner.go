package cart

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

// Owner identifies who a cart belongs to: exactly one of an authenticated
// user or an anonymous browser session.
type Owner struct {
	userID     uuid.UUID
	sessionKey string
}

// UserOwner builds an owner for an authenticated user.
func UserOwner(userID uuid.UUID) Owner {
	return Owner{userID: userID}
}

// SessionOwner builds an owner for an anonymous session.
func SessionOwner(sessionKey string) Owner {
	return Owner{sessionKey: strings.TrimSpace(sessionKey)}
}

// IsUser reports whether the owner is an authenticated user.
func (o Owner) IsUser() bool {
	return o.userID != uuid.Nil
}

// UserID returns the owning user id; zero for session owners.
func (o Owner) UserID() uuid.UUID {
	return o.userID
}

// SessionKey returns the owning session key; empty for user owners.
func (o Owner) SessionKey() string {
	return o.sessionKey
}

// Validate rejects owners that identify nobody or both sides at once.
func (o Owner) Validate() error {
	hasUser := o.userID != uuid.Nil
	hasSession := o.sessionKey != ""
	if hasUser == hasSession {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner must be a user or a session, not both")
	}
	return nil
}
