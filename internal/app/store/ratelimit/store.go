// internal/app/store/ratelimit/store.go

// Package ratelimit tracks failed direct-login attempts per identity id and
// locks an identity out after too many failures in a window. Lookups fail
// open: a storage fault never blocks a legitimate login.
package ratelimit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Attempt tracks failed login attempts for one identity id.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	IdentityID   string             `bson:"identity_id"`
	AttemptCount int                `bson:"attempt_count"` // failures in the current window
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"` // nil if not locked
	LastAttempt  time.Time          `bson:"last_attempt"` // drives the TTL cleanup index
}

// Store manages lockout tracking for direct logins.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
}

// New creates a rate limit Store with the given thresholds.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:               db.Collection("rate_limits"),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
	}
}

// CheckAllowed reports whether the identity may attempt a login right now.
// lockedUntil is non-nil only while a lockout is active. A nil Store means
// rate limiting is disabled and everything is allowed.
func (s *Store) CheckAllowed(ctx context.Context, identityID string) (allowed bool, lockedUntil *time.Time) {
	if s == nil {
		return true, nil
	}
	now := time.Now()

	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"identity_id": identityID}).Decode(&attempt)
	if err != nil {
		// Unknown identity or storage fault: allow (fail open).
		return true, nil
	}

	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return false, attempt.LockedUntil
	}
	if now.After(attempt.WindowStart.Add(s.windowDuration)) {
		return true, nil // window elapsed, counter is stale
	}
	return attempt.AttemptCount < s.maxAttempts, nil
}

// RecordFailure registers one failed attempt, starting a lockout when the
// failure count reaches the threshold. Returns whether this failure triggered
// the lockout.
func (s *Store) RecordFailure(ctx context.Context, identityID string) bool {
	if s == nil {
		return false
	}
	now := time.Now()

	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"identity_id": identityID}).Decode(&attempt)
	if err == mongo.ErrNoDocuments {
		attempt = Attempt{
			IdentityID:   identityID,
			AttemptCount: 1,
			WindowStart:  now,
			LastAttempt:  now,
		}
		lockedOut := s.applyThreshold(&attempt, now)
		_, _ = s.c.InsertOne(ctx, attempt)
		return lockedOut
	}
	if err != nil {
		return false // fail open
	}

	if now.After(attempt.WindowStart.Add(s.windowDuration)) {
		attempt.AttemptCount = 1
		attempt.WindowStart = now
		attempt.LockedUntil = nil
	} else {
		attempt.AttemptCount++
	}
	attempt.LastAttempt = now
	lockedOut := s.applyThreshold(&attempt, now)

	_, _ = s.c.UpdateOne(ctx,
		bson.M{"_id": attempt.ID},
		bson.M{"$set": bson.M{
			"attempt_count": attempt.AttemptCount,
			"window_start":  attempt.WindowStart,
			"locked_until":  attempt.LockedUntil,
			"last_attempt":  attempt.LastAttempt,
		}},
	)
	return lockedOut
}

// applyThreshold sets the lockout when the counter reaches the limit.
func (s *Store) applyThreshold(attempt *Attempt, now time.Time) bool {
	if attempt.AttemptCount < s.maxAttempts {
		return false
	}
	until := now.Add(s.lockoutDuration)
	attempt.LockedUntil = &until
	return true
}

// ClearOnSuccess removes the tracking record after a successful login.
func (s *Store) ClearOnSuccess(ctx context.Context, identityID string) error {
	if s == nil {
		return nil
	}
	_, err := s.c.DeleteOne(ctx, bson.M{"identity_id": identityID})
	return err
}
