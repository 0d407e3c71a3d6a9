package models

import "time"

type ScheduledPost struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	BusinessID     int64      `db:"business_id" json:"business_id"`
	PostKind       string     `db:"post_kind" json:"post_kind"` // social, blog
	Caption        string     `db:"caption" json:"caption"`
	Title          string     `db:"title" json:"title"`
	Body           string     `db:"body" json:"body"`
	Slug           string     `db:"slug" json:"slug"`
	Excerpt        string     `db:"excerpt" json:"excerpt"`
	Category       string     `db:"category" json:"category"`
	Tags           []string   `db:"tags" json:"tags"`
	Platforms      []string   `db:"platforms" json:"platforms"`
	ScheduledDate  string     `db:"scheduled_date" json:"scheduled_date"` // 2006-01-02
	ScheduledTime  string     `db:"scheduled_time" json:"scheduled_time"` // 15:04
	Timezone       string     `db:"timezone" json:"timezone"`
	Status         string     `db:"status" json:"status"`
	RetryCount     int        `db:"retry_count" json:"retry_count"`
	LastError      string     `db:"last_error" json:"last_error"`
	LastErrorClass string     `db:"last_error_class" json:"last_error_class"`
	LastRetryAt    *time.Time `db:"last_retry_at" json:"last_retry_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id" json:"post_id"`
	MediaKind    string    `db:"media_kind" json:"media_kind"` // image, video
	FileURL      string    `db:"file_url" json:"file_url"`
	FileKey      string    `db:"file_key" json:"file_key"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

// ScheduledAt resolves the post's wall-clock schedule to UTC. The stored
// date/time are interpreted in the post's timezone; an empty or unknown
// timezone falls back to UTC.
func (p *ScheduledPost) ScheduledAt() (time.Time, error) {
	loc := time.UTC
	if p.Timezone != "" {
		l, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", p.ScheduledDate+" "+p.ScheduledTime, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
