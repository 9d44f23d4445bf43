package domain

import (
	"strings"
	"time"
)

// Role is the authorization level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ProofPurpose names the out-of-band flow a one-time token belongs to.
type ProofPurpose string

const (
	PurposeVerification ProofPurpose = "verification"
	PurposeReset        ProofPurpose = "reset"
)

// ProofToken is the single active one-time token of one purpose on an identity.
// TokenHash and ExpiresAt are always set together; an absent token is a nil *ProofToken.
type ProofToken struct {
	TokenHash string    `bson:"token_hash"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// ActiveAt reports whether the token can still be redeemed at t.
func (p *ProofToken) ActiveAt(t time.Time) bool {
	return p != nil && t.Before(p.ExpiresAt)
}

// PasswordHash is a salted one-way hash. Only a PasswordHasher produces one,
// which keeps plaintext passwords out of every persistence signature.
type PasswordHash string

// Identity models one end user account.
type Identity struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	PasswordHash PasswordHash `json:"-"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	Role         Role         `json:"role"`
	Verified     bool         `json:"verified"`

	Verification *ProofToken `json:"-"`
	Reset        *ProofToken `json:"-"`

	LastLoginAt time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Proof returns the active token slot for purpose.
func (i *Identity) Proof(purpose ProofPurpose) *ProofToken {
	switch purpose {
	case PurposeVerification:
		return i.Verification
	case PurposeReset:
		return i.Reset
	}
	return nil
}

// ProfileUpdate is a sparse update: a nil field is left untouched.
// Role is only honoured on the admin path.
type ProfileUpdate struct {
	Name      *string
	Email     *string
	AvatarURL *string
	Role      *Role
}

// Empty reports whether no field is set.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.AvatarURL == nil && u.Role == nil
}

// NormalizeEmail trims and lower-cases an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
