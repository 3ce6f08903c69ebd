package session

import (
	"context"
	"errors"

	"github.com/vaxpoint/vaccine-scheduler/internal/identity"
)

var ErrNoSession = errors.New("no active session for token")

// Session identifies the one participant behind a request. Exactly one kind
// is ever set; the booking engine treats it as its authorization context.
type Session struct {
	Kind     identity.Kind `json:"kind"`
	Username string        `json:"username"`
}

func (s Session) IsPatient() bool   { return s.Kind == identity.KindPatient }
func (s Session) IsCaregiver() bool { return s.Kind == identity.KindCaregiver }

// Store maps opaque bearer tokens to sessions. Tokens expire server-side;
// Delete implements logout.
type Store interface {
	Create(ctx context.Context, sess Session) (token string, err error)
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
