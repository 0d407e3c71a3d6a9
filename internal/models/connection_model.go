package models

import "time"

type Connection struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Platform       string     `db:"platform" json:"platform"`
	AccountID      string     `db:"account_id" json:"account_id"`
	AccountName    string     `db:"account_name" json:"account_name"`
	PageID         string     `db:"page_id" json:"page_id"`
	SiteURL        string     `db:"site_url" json:"site_url"`
	Username       string     `db:"username" json:"username"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time  `db:"token_expires_at" json:"token_expires_at"`
	Active         bool       `db:"active" json:"active"`
	LastVerifiedAt *time.Time `db:"last_verified_at" json:"last_verified_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
