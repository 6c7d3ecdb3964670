package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-chat-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads the profile previews embedded in message and
// conversation payloads. Profile writes belong to the account service.
type UserRepository interface {
	GetPreview(ctx context.Context, userID int) (models.UserPreview, error)
	BulkPreviews(ctx context.Context, userIDs []int) (map[int]models.UserPreview, error)
}

// UserRepo is the sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetPreview fetches one user's preview.
func (r *UserRepo) GetPreview(ctx context.Context, userID int) (models.UserPreview, error) {
	var preview models.UserPreview
	err := r.db.GetContext(ctx, &preview,
		`SELECT user_id, username, display_name, avatar_url FROM user_profiles WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserPreview{}, ErrUserNotFound
	}
	return preview, err
}

// BulkPreviews fetches previews for a set of user ids. Missing users are
// simply absent from the result.
func (r *UserRepo) BulkPreviews(ctx context.Context, userIDs []int) (map[int]models.UserPreview, error) {
	result := make(map[int]models.UserPreview, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(
		`SELECT user_id, username, display_name, avatar_url FROM user_profiles WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var preview models.UserPreview
		if err := rows.StructScan(&preview); err != nil {
			return nil, err
		}
		result[preview.ID] = preview
	}
	return result, rows.Err()
}
