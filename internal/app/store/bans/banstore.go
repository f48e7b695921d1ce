// internal/app/store/bans/banstore.go

// Package banstore is the authoritative ban registry. Existence of a record
// for an identity id is the sole ban signal; absence means not banned.
package banstore

import (
	"context"
	"time"

	"github.com/dalemusser/stratagate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the bans collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new ban store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("bans")}
}

// IsBanned reports whether the identity id is banned and, if so, why.
// Pure read; never blocks on in-flight mutations.
func (s *Store) IsBanned(ctx context.Context, id string) (string, bool, error) {
	var ban models.Ban
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ban)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ban.Reason, true, nil
}

// Ban inserts or overwrites the ban record for the identity id in one atomic
// upsert; re-banning refreshes the record. An empty reason gets the default
// admin message. Returns the stored record and whether it changed (a fresh
// ban, or a re-ban with a different reason or issuer) so callers can apply
// their notification dedup policy.
func (s *Store) Ban(ctx context.Context, id, reason, by string) (*models.Ban, bool, error) {
	if reason == "" {
		reason = models.DefaultBanReason
	}
	ban := models.Ban{
		ID:       id,
		Reason:   reason,
		BannedAt: time.Now().UTC(),
		BannedBy: by,
	}

	var prior models.Ban
	err := s.c.FindOneAndReplace(ctx, bson.M{"_id": id}, ban,
		options.FindOneAndReplace().
			SetUpsert(true).
			SetReturnDocument(options.Before),
	).Decode(&prior)
	if err == mongo.ErrNoDocuments {
		return &ban, true, nil // fresh ban
	}
	if err != nil {
		return nil, false, err
	}

	changed := prior.Reason != ban.Reason || prior.BannedBy != ban.BannedBy
	return &ban, changed, nil
}

// Unban removes the ban record if present. Unbanning a never-banned id is a
// no-op; the returned flag tells callers whether anything was removed.
func (s *Store) Unban(ctx context.Context, id string) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// List returns all ban records, most recent first.
func (s *Store) List(ctx context.Context) ([]models.Ban, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "banned_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var bans []models.Ban
	if err := cur.All(ctx, &bans); err != nil {
		return nil, err
	}
	return bans, nil
}

// Count returns the number of ban records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
