// internal/app/store/users/userstore.go
package userstore

// Terminology: User Identifiers
//   - IdentityID / identityID / identity id: the stable external user identifier
//     supplied by the OAuth provider or by a direct client claim. It is the _id
//     of the user record.

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratagate/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BindingPolicy selects how a bound hardware fingerprint is enforced on login.
type BindingPolicy string

const (
	// PolicyStrict rejects a login whose fingerprint differs from the bound
	// one; no state is mutated on rejection.
	PolicyStrict BindingPolicy = "strict"
	// PolicyLenient overwrites the bound fingerprint with the incoming value
	// (last writer wins) and never rejects on mismatch.
	PolicyLenient BindingPolicy = "lenient"
)

// ParsePolicy validates a configured policy string.
func ParsePolicy(s string) (BindingPolicy, error) {
	switch BindingPolicy(s) {
	case PolicyStrict, PolicyLenient:
		return BindingPolicy(s), nil
	}
	return "", errors.New(`hwid policy must be "strict" or "lenient"`)
}

var (
	// ErrHardwareMismatch is returned under the strict policy when the
	// incoming fingerprint differs from the bound one. The stored record is
	// untouched.
	ErrHardwareMismatch = errors.New("hardware fingerprint does not match the bound device")

	// ErrNotFound is returned by lookups for unknown identity ids.
	ErrNotFound = errors.New("user not found")

	errContention = errors.New("login update contention, giving up")
)

// maxLoginAttempts bounds the retry loop that resolves concurrent first-login
// creation races. One retry is enough in practice: a loser of the insert race
// finds the record on its next update pass.
const maxLoginAttempts = 4

// Store provides access to the users collection. Every mutation is a single
// atomic update so concurrent logins for the same identity never lose counts.
type Store struct {
	c      *mongo.Collection
	policy BindingPolicy
}

// New creates a new user store with the given hardware-binding policy.
func New(db *mongo.Database, policy BindingPolicy) *Store {
	return &Store{c: db.Collection("users"), policy: policy}
}

// Policy returns the configured hardware-binding policy.
func (s *Store) Policy() BindingPolicy {
	return s.policy
}

// RecordLogin applies one successful login for the identity id: it creates
// the record on first sight (total_logins = 1, first_login_at set once,
// fingerprint bound if supplied) or refreshes an existing one (counter
// incremented, last_login_at and profile snapshot updated). The hardware
// fingerprint is enforced per the store's policy; an empty incoming
// fingerprint never binds, overwrites, or rejects.
//
// Returns the post-mutation record and whether it was created by this call.
func (s *Store) RecordLogin(ctx context.Context, id string, profile models.Profile, hwid string) (*models.User, bool, error) {
	for attempt := 0; attempt < maxLoginAttempts; attempt++ {
		now := time.Now().UTC()

		// Update path: one conditional atomic read-modify-write. Under the
		// strict policy the filter only matches records whose fingerprint is
		// unbound or equal, so the $set can never clobber a different device.
		filter := bson.M{"_id": id}
		if s.policy == PolicyStrict && hwid != "" {
			filter["$or"] = []bson.M{
				{"hardware_fingerprint": ""},
				{"hardware_fingerprint": hwid},
			}
		}

		set := bson.M{
			"username":       profile.Username,
			"email":          profile.Email,
			"email_verified": profile.EmailVerified,
			"last_login_at":  now,
		}
		if hwid != "" {
			set["hardware_fingerprint"] = hwid
		}

		var u models.User
		err := s.c.FindOneAndUpdate(ctx, filter,
			bson.M{"$set": set, "$inc": bson.M{"total_logins": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&u)
		if err == nil {
			return &u, false, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, false, err
		}

		// No match: either the record does not exist yet, or the strict
		// filter excluded it because the fingerprint differs. A concurrent
		// first login may have inserted a record with a matching fingerprint
		// after our update missed, so a bare existence check is not enough:
		// only a stored fingerprint that is non-empty and different is a
		// mismatch. Anything else retries and resolves on the update path.
		if s.policy == PolicyStrict && hwid != "" {
			var existing models.User
			err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
			switch {
			case err == nil && existing.HardwareFingerprint != "" && existing.HardwareFingerprint != hwid:
				return nil, false, ErrHardwareMismatch
			case err == nil:
				continue
			case err != mongo.ErrNoDocuments:
				return nil, false, err
			}
		}

		// First login for this identity.
		u = models.User{
			ID:                  id,
			Username:            profile.Username,
			Email:               profile.Email,
			EmailVerified:       profile.EmailVerified,
			HardwareFingerprint: hwid,
			FirstLoginAt:        now,
			LastLoginAt:         now,
			TotalLogins:         1,
		}
		_, err = s.c.InsertOne(ctx, u)
		if err == nil {
			return &u, true, nil
		}
		if !wafflemongo.IsDup(err) {
			return nil, false, err
		}
		// A concurrent login created the record first; take the update path.
	}
	return nil, false, errContention
}

// GetByID loads a user record. Returns ErrNotFound for unknown ids.
func (s *Store) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// List returns all user records, most recent login first.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "last_login_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of user records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// CountActiveSince returns the number of users whose last login is at or
// after the cutoff.
func (s *Store) CountActiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"last_login_at": bson.M{"$gte": cutoff}})
}

// TotalLogins sums the login counters across all users.
func (s *Store) TotalLogins(ctx context.Context) (int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$total_logins"},
		}}},
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var out []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}
