package domain

import "time"

// SessionToken is the ledger record tracking server-side validity of an
// issued token. Records are flagged, never deleted.
type SessionToken struct {
	Token     string
	UserID    string
	Revoked   bool
	Expired   bool
	CreatedAt time.Time
}

// Usable reports whether the record still permits authentication.
func (t SessionToken) Usable() bool {
	return !t.Revoked && !t.Expired
}
