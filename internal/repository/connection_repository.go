package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/promoloop/publish-engine/internal/models"
)

type ConnectionRepository interface {
	GetActive(ctx context.Context, userID int64, platform string) (*models.Connection, error)
	ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Connection, error)
	SetToken(ctx context.Context, id int64, conn *models.Connection) error
	TouchVerified(ctx context.Context, id int64) error
}

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = `id, user_id, platform, account_id, account_name, page_id, site_url,
		username, access_token, refresh_token, token_expires_at, active, last_verified_at,
		created_at, updated_at`

func scanConnection(row interface{ Scan(...interface{}) error }) (*models.Connection, error) {
	var c models.Connection
	err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.AccountID, &c.AccountName, &c.PageID,
		&c.SiteURL, &c.Username, &c.AccessToken, &c.RefreshToken, &c.TokenExpiresAt,
		&c.Active, &c.LastVerifiedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActive returns the single active connection for the (user, platform)
// pair, or nil when the user never connected the platform.
func (r *connectionRepository) GetActive(ctx context.Context, userID int64, platform string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE user_id = $1 AND platform = $2 AND active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, userID, platform))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE active = TRUE
		AND refresh_token <> ''
		AND ((token_expires_at BETWEEN $1 AND $2) OR (token_expires_at < $1))`

	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, conn)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return connections, nil
}

// SetToken rotates the stored credentials. Empty token fields keep the
// current value so platforms that do not rotate the refresh token retain it.
func (r *connectionRepository) SetToken(ctx context.Context, id int64, conn *models.Connection) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE connections
		SET
			access_token = COALESCE(NULLIF($2, ''), access_token),
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = COALESCE($4, token_expires_at),
			last_verified_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND active = TRUE
	`
	result, err := tx.ExecContext(ctx, query, id, conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; connection may have been deactivated")
		return errors.New("no rows affected; connection may have been deactivated")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *connectionRepository) TouchVerified(ctx context.Context, id int64) error {
	query := `UPDATE connections SET last_verified_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
