// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureAll is called at startup. Each ensure* function is idempotent.
// Errors are aggregated so any problem is visible and startup can fail fast.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureOAuthStates(ctx, db); err != nil {
		problems = append(problems, "oauth_states: "+err.Error())
	}
	if err := ensureRateLimits(ctx, db); err != nil {
		problems = append(problems, "rate_limits: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ensureUsers indexes the users collection for the panel listing and the
// active-user stat. The identity id is the _id, so lookups need no extra index.
func ensureUsers(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "last_login_at", Value: -1}},
			Options: options.Index().SetName("idx_users_last_login"),
		},
	})
	return err
}

// ensureOAuthStates makes state tokens unique and expires them via TTL.
func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("oauth_states").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_oauth_states_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_states_ttl"),
		},
	})
	return err
}

// ensureRateLimits keys lockout records by identity id and cleans up stale
// records a day after the last attempt.
func ensureRateLimits(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("rate_limits").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identity_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_ratelimit_identity_id"),
		},
		{
			Keys: bson.D{{Key: "last_attempt", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(int32((24 * time.Hour).Seconds())).
				SetName("idx_ratelimit_ttl"),
		},
	})
	return err
}
