package banstore

import (
	"testing"

	"github.com/dalemusser/stratagate/internal/domain/models"
	"github.com/dalemusser/stratagate/internal/testutil"
)

func TestBanAndIsBanned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	reason, banned, err := store.IsBanned(ctx, "111")
	if err != nil {
		t.Fatalf("IsBanned() error = %v", err)
	}
	if banned {
		t.Error("IsBanned() = true for unknown identity, want false")
	}
	if reason != "" {
		t.Errorf("IsBanned() reason = %q, want empty", reason)
	}

	ban, changed, err := store.Ban(ctx, "111", "Cheating", "admin-1")
	if err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if !changed {
		t.Error("Ban() changed = false for a fresh ban, want true")
	}
	if ban.Reason != "Cheating" {
		t.Errorf("ban.Reason = %q, want %q", ban.Reason, "Cheating")
	}
	if ban.BannedBy != "admin-1" {
		t.Errorf("ban.BannedBy = %q, want %q", ban.BannedBy, "admin-1")
	}
	if ban.BannedAt.IsZero() {
		t.Error("Ban() did not set BannedAt")
	}

	reason, banned, err = store.IsBanned(ctx, "111")
	if err != nil {
		t.Fatalf("IsBanned() error = %v", err)
	}
	if !banned {
		t.Error("IsBanned() = false after Ban(), want true")
	}
	if reason != "Cheating" {
		t.Errorf("IsBanned() reason = %q, want %q", reason, "Cheating")
	}
}

func TestBan_DefaultReason(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ban, _, err := store.Ban(ctx, "111", "", "admin-1")
	if err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if ban.Reason != models.DefaultBanReason {
		t.Errorf("ban.Reason = %q, want default %q", ban.Reason, models.DefaultBanReason)
	}
}

func TestBan_RepeatBan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, _, err := store.Ban(ctx, "111", "Cheating", "admin-1"); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	// Same reason and actor: record effectively unchanged.
	_, changed, err := store.Ban(ctx, "111", "Cheating", "admin-1")
	if err != nil {
		t.Fatalf("repeat Ban() error = %v", err)
	}
	if changed {
		t.Error("repeat Ban() with same reason: changed = true, want false")
	}

	// New reason: record changed.
	ban, changed, err := store.Ban(ctx, "111", "Ban evasion", "admin-2")
	if err != nil {
		t.Fatalf("Ban() with new reason: error = %v", err)
	}
	if !changed {
		t.Error("Ban() with new reason: changed = false, want true")
	}
	if ban.Reason != "Ban evasion" {
		t.Errorf("ban.Reason = %q, want %q", ban.Reason, "Ban evasion")
	}

	// Still exactly one ban record for the identity.
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestUnban(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, _, err := store.Ban(ctx, "111", "Cheating", "admin-1"); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	removed, err := store.Unban(ctx, "111")
	if err != nil {
		t.Fatalf("Unban() error = %v", err)
	}
	if !removed {
		t.Error("Unban() removed = false, want true")
	}

	_, banned, err := store.IsBanned(ctx, "111")
	if err != nil {
		t.Fatalf("IsBanned() error = %v", err)
	}
	if banned {
		t.Error("IsBanned() = true after Unban(), want false")
	}

	// Unban is idempotent: a second call reports nothing removed.
	removed, err = store.Unban(ctx, "111")
	if err != nil {
		t.Fatalf("second Unban() error = %v", err)
	}
	if removed {
		t.Error("second Unban() removed = true, want false")
	}
}

func TestList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, id := range []string{"111", "222"} {
		if _, _, err := store.Ban(ctx, id, "Cheating", "admin-1"); err != nil {
			t.Fatalf("Ban(%s) error = %v", id, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List() returned %d bans, want 2", len(list))
	}
}
