package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat-service/internal/models"
)

var ErrPresenceNotFound = errors.New("presence not found")

// PresenceRepository persists per-user presence state.
type PresenceRepository interface {
	Set(ctx context.Context, userID int, state string, lastSeen time.Time) error
	Get(ctx context.Context, userID int) (models.Presence, error)
}

// PresenceRepo is the sqlx implementation of PresenceRepository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs a PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// Set upserts the presence row for a user.
func (r *PresenceRepo) Set(ctx context.Context, userID int, state string, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_presence (user_id, state, last_seen) VALUES ($1, $2, $3)
         ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, last_seen = EXCLUDED.last_seen`,
		userID, state, lastSeen)
	return err
}

// Get fetches the presence row for a user.
func (r *PresenceRepo) Get(ctx context.Context, userID int) (models.Presence, error) {
	var presence models.Presence
	err := r.db.GetContext(ctx, &presence,
		`SELECT user_id, state, last_seen FROM user_presence WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Presence{}, ErrPresenceNotFound
	}
	return presence, err
}
