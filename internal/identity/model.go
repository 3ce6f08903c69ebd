package identity

import "time"

// Kind distinguishes the two participant types. At most one kind is ever
// attached to a login session.
type Kind string

const (
	KindPatient   Kind = "patient"
	KindCaregiver Kind = "caregiver"
)

func (k Kind) Valid() bool {
	return k == KindPatient || k == KindCaregiver
}

type Account struct {
	Kind      Kind
	Username  string
	Salt      []byte
	Hash      []byte
	CreatedAt time.Time
}
