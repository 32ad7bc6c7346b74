package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/models"
)

func CreateUser(ctx context.Context, db *sql.DB, email, name string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, email, name, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, email, name).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, created_at, updated_at
		FROM users
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// GetProfile returns the user's profile, or nil if none was saved yet.
func GetProfile(ctx context.Context, q database.Querier, userID int64) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		SELECT id, user_id, full_name, phone, email
		FROM profiles
		WHERE user_id = $1`

	err := q.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.Phone,
		&profile.Email,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return profile, nil
}

func SaveProfile(ctx context.Context, db *sql.DB, userID int64, fullName, phone, email string) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		INSERT INTO profiles (user_id, full_name, phone, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone, email = EXCLUDED.email
		RETURNING id, user_id, full_name, phone, email`

	err := db.QueryRowContext(ctx, query, userID, fullName, phone, email).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.Phone,
		&profile.Email,
	)
	if err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	return profile, nil
}
