package domain

import "time"

// RefreshSession is a persisted refresh credential. Only the SHA-256 of the
// opaque token is stored. FamilyID is shared by every session produced by
// rotating the same login.
type RefreshSession struct {
	ID         string
	IdentityID string
	FamilyID   string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// ExpiredAt reports whether the session can no longer be redeemed at t.
func (s *RefreshSession) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// RotationRecord is what the rotation ledger keeps for a token that was
// rotated away: enough to revoke the family a replay belongs to.
type RotationRecord struct {
	IdentityID string
	FamilyID   string
}

// IssuedSession is what the registry hands back exactly once when it opens a session.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
}

// Notification is an outbound message payload for the mailer.
type Notification struct {
	To      string
	Subject string
	HTML    string
}
