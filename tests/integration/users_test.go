package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/store"
)

func TestGetUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	created := createTestUser(t, db, "get-user@example.com")

	user, err := store.GetUser(ctx, db, created.ID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if user.Email != "get-user@example.com" {
		t.Errorf("Expected email get-user@example.com, got %s", user.Email)
	}

	_, err = store.GetUser(ctx, db, created.ID+1000)
	if !errors.Is(err, database.ErrUserNotFound) {
		t.Errorf("Expected user not found error, got: %v", err)
	}
}

func TestSaveProfileUpsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "profile-upsert@example.com")

	if profile, err := store.GetProfile(ctx, db, user.ID); err != nil || profile != nil {
		t.Fatalf("Expected no profile yet, got %+v (err %v)", profile, err)
	}

	first, err := store.SaveProfile(ctx, db, user.ID, "First Name", "+100", "first@example.com")
	if err != nil {
		t.Fatalf("Save profile: %v", err)
	}

	second, err := store.SaveProfile(ctx, db, user.ID, "Second Name", "+200", "second@example.com")
	if err != nil {
		t.Fatalf("Save profile again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected the same profile row updated, got %d then %d", first.ID, second.ID)
	}

	profile, err := store.GetProfile(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}
	if profile.FullName != "Second Name" || profile.Phone != "+200" || profile.Email != "second@example.com" {
		t.Errorf("Expected updated profile, got %+v", profile)
	}
}
