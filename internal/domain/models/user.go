// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - IdentityID / identityID / identity id: the stable external user identifier
//     supplied by the OAuth provider or by a direct client claim. It is the _id
//     of the user record; there is no separate internal id.

import "time"

// User is the authoritative per-identity record. It is created exactly once,
// on the first successful login, and updated on every login after that.
//
// Profile fields (Username, Email, EmailVerified) are a snapshot of the most
// recent provider claim and are overwritten on each successful login.
type User struct {
	ID            string `bson:"_id" json:"id"`
	Username      string `bson:"username" json:"username"`
	Email         string `bson:"email" json:"email"`
	EmailVerified bool   `bson:"email_verified" json:"email_verified"`

	// HardwareFingerprint is the client-supplied device identifier, bound on
	// the first login that supplies one. Under the strict binding policy a
	// later login with a different fingerprint is rejected; under the lenient
	// policy the stored value is overwritten.
	HardwareFingerprint string `bson:"hardware_fingerprint" json:"hardware_fingerprint,omitempty"`

	FirstLoginAt time.Time `bson:"first_login_at" json:"first_login_at"` // immutable after creation
	LastLoginAt  time.Time `bson:"last_login_at" json:"last_login_at"`
	TotalLogins  int64     `bson:"total_logins" json:"total_logins"` // >= 1 once the record exists
}

// Session roles. Role is fixed at session issuance: a user whose identity id
// equals the configured owner id gets RoleOwner, everyone else RoleStandard.
const (
	RoleOwner    = "owner"
	RoleStandard = "standard"
)

// Profile is the provider-supplied (or client-claimed) identity snapshot that
// accompanies a login.
type Profile struct {
	Username      string
	Email         string
	EmailVerified bool
}
