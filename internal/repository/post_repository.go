package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/promoloop/publish-engine/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	ListDueCandidates(ctx context.Context, maxRetries int) ([]*models.ScheduledPost, error)
	TryMarkPublishing(ctx context.Context, id int64) (bool, error)
	MarkPublished(ctx context.Context, id int64, results []byte, completedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, lastError, errorClass string, results []byte, chargeRetry bool, retryCap int) error
	GetPlatformResults(ctx context.Context, id int64) ([]byte, error)
	ResetStuck(ctx context.Context, olderThan time.Time) (int64, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, business_id, post_kind, caption, title, body, slug, excerpt,
		category, tags, platforms, scheduled_date, scheduled_time, timezone, status,
		retry_count, last_error, last_error_class, last_retry_at, completed_at, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := row.Scan(&post.ID, &post.UserID, &post.BusinessID, &post.PostKind, &post.Caption,
		&post.Title, &post.Body, &post.Slug, &post.Excerpt, &post.Category,
		pq.Array(&post.Tags), pq.Array(&post.Platforms), &post.ScheduledDate,
		&post.ScheduledTime, &post.Timezone, &post.Status, &post.RetryCount,
		&post.LastError, &post.LastErrorClass, &post.LastRetryAt, &post.CompletedAt,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

// ListDueCandidates fetches every retry-eligible scheduled row. Timezone
// normalization and the due/ordering cut happen in the selector, not in SQL.
func (r *postRepository) ListDueCandidates(ctx context.Context, maxRetries int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE status = $1 AND retry_count < $2`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, maxRetries)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// TryMarkPublishing claims the post for this run. The conditional update is
// the lock: zero affected rows means another invocation got there first.
func (r *postRepository) TryMarkPublishing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusPublishing, time.Now().UTC(), id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, results []byte, completedAt time.Time) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			platform_results = $2,
			last_error = '',
			last_error_class = '',
			completed_at = $3,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, results, completedAt, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkFailed stores the aggregated outcome. chargeRetry spends one unit of
// the cross-tick budget; otherwise retry_count is pinned to retryCap so the
// selector never picks the post up again.
func (r *postRepository) MarkFailed(ctx context.Context, id int64, lastError, errorClass string, results []byte, chargeRetry bool, retryCap int) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			last_error = $2,
			last_error_class = $3,
			platform_results = $4,
			retry_count = CASE WHEN $5 THEN retry_count + 1 ELSE GREATEST(retry_count, $6) END,
			last_retry_at = $7,
			updated_at = $7
		WHERE id = $8
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, lastError, errorClass,
		results, chargeRetry, retryCap, time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetPlatformResults(ctx context.Context, id int64) ([]byte, error) {
	query := `SELECT COALESCE(platform_results, '{}') FROM scheduled_posts WHERE id = $1`

	var results []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&results)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return results, nil
}

// ResetStuck returns posts abandoned mid-run (process death between claim and
// final status) to the scheduled pool. retry_count is left untouched.
func (r *postRepository) ResetStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, time.Now().UTC(), models.PostStatusPublishing, olderThan)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return affected, nil
}
