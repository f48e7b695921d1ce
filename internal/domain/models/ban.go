// internal/domain/models/ban.go
package models

import "time"

// DefaultBanReason is recorded when an administrator bans without a reason.
const DefaultBanReason = "Banned by admin"

// Ban marks an identity as banned. Existence of a Ban record is the sole ban
// signal: absence means not banned. Re-banning overwrites the record; the
// operation is idempotent.
type Ban struct {
	ID       string    `bson:"_id" json:"id"` // identity id of the banned user
	Reason   string    `bson:"reason" json:"reason"`
	BannedAt time.Time `bson:"banned_at" json:"banned_at"`
	BannedBy string    `bson:"banned_by,omitempty" json:"banned_by,omitempty"` // identity id of the issuing admin
}
