package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/promoloop/publish-engine/internal/models"
)

type PublishLogRepository interface {
	Create(ctx context.Context, entry *models.PublishLog) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error)
}

type publishLogRepository struct {
	db *sql.DB
}

func NewPublishLogRepository(db *sql.DB) PublishLogRepository {
	return &publishLogRepository{db: db}
}

func (r *publishLogRepository) Create(ctx context.Context, entry *models.PublishLog) (int64, error) {
	query := `
		INSERT INTO publish_logs (user_id, post_id, platform, success, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, entry.UserID, entry.PostID, entry.Platform,
		entry.Success, entry.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *publishLogRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error) {
	query := `SELECT id, user_id, post_id, platform, success, error_message, created_at
		FROM publish_logs WHERE post_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.PublishLog
	for rows.Next() {
		var entry models.PublishLog
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.PostID, &entry.Platform,
			&entry.Success, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
