// Package engine is the batch entry point: it selects due posts, ensures
// credentials, dispatches to each target platform and persists aggregated
// outcomes. It is stateless across invocations; everything it knows lives in
// the store.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/promoloop/publish-engine/configs"
	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
	"github.com/promoloop/publish-engine/internal/publisher"
	"github.com/promoloop/publish-engine/internal/repository"
	"github.com/promoloop/publish-engine/internal/retry"
)

type RunSummary struct {
	RunID          string      `json:"run_id"`
	Success        bool        `json:"success"`
	Timestamp      time.Time   `json:"timestamp"`
	PostsProcessed int         `json:"posts_processed"`
	PostsPublished int         `json:"posts_published"`
	PostsFailed    int         `json:"posts_failed"`
	Details        []RunDetail `json:"details"`
}

type RunDetail struct {
	PostID           int64           `json:"post_id"`
	Platforms        []string        `json:"platforms"`
	Status           string          `json:"status"`
	Error            string          `json:"error,omitempty"`
	AlreadyPublished bool            `json:"already_published,omitempty"`
	Results          json.RawMessage `json:"platform_results,omitempty"`
}

type Engine struct {
	cfg       config.Config
	pr        repository.PostRepository
	pm        repository.PostMediaRepository
	pl        repository.PublishLogRepository
	cm        credential.Manager
	registry  *publisher.Registry
	retryOpts []retry.Option
	now       func() time.Time
}

type Option func(*Engine)

// WithRetryOptions tunes the in-tick backoff. Tests shrink the base delay.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(e *Engine) {
		e.retryOpts = opts
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func New(
	cfg config.Config,
	pr repository.PostRepository,
	pm repository.PostMediaRepository,
	pl repository.PublishLogRepository,
	cm credential.Manager,
	registry *publisher.Registry,
	opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		pr:       pr,
		pm:       pm,
		pl:       pl,
		cm:       cm,
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SelectDue returns the retry-eligible posts whose normalized schedule is at
// or before now, oldest first, capped at the batch limit. Read-only.
func (e *Engine) SelectDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	candidates, err := e.pr.ListDueCandidates(ctx, e.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}

	type duePost struct {
		post *models.ScheduledPost
		at   time.Time
	}
	var due []duePost
	for _, post := range candidates {
		at, err := post.ScheduledAt()
		if err != nil {
			slog.Info("skipping post with unresolvable schedule", "post_id", post.ID, "timezone", post.Timezone)
			continue
		}
		if !at.After(now) {
			due = append(due, duePost{post: post, at: at})
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })

	limit := e.cfg.BatchLimit
	if limit <= 0 {
		limit = 50
	}
	if len(due) > limit {
		due = due[:limit]
	}

	posts := make([]*models.ScheduledPost, len(due))
	for i, d := range due {
		posts[i] = d.post
	}
	return posts, nil
}

// Run executes one batch tick. Items are handled end-to-end in ascending
// scheduled-time order; a failure on one never stops the rest.
func (e *Engine) Run(ctx context.Context) (*RunSummary, error) {
	if e.cfg.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunDeadline)
		defer cancel()
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	summary := &RunSummary{RunID: runID, Success: true, Timestamp: now}

	due, err := e.SelectDue(ctx, now)
	if err != nil {
		return nil, err
	}

	for _, post := range due {
		if ctx.Err() != nil {
			slog.Info("run deadline reached, leaving remaining posts for the next tick", "run_id", runID)
			break
		}

		claimed, err := e.pr.TryMarkPublishing(ctx, post.ID)
		if err != nil {
			summary.Success = false
			summary.Details = append(summary.Details, RunDetail{PostID: post.ID, Platforms: post.Platforms, Status: "error", Error: err.Error()})
			continue
		}
		if !claimed {
			// Another invocation owns it.
			continue
		}

		detail := e.processPost(ctx, post)
		summary.PostsProcessed++
		if detail.Status == models.PostStatusPublished {
			summary.PostsPublished++
		} else {
			summary.PostsFailed++
		}
		summary.Details = append(summary.Details, detail)
	}

	return summary, nil
}

// PublishOne handles an explicit re-invocation by id. A published post
// short-circuits with its cached results and zero outbound calls.
func (e *Engine) PublishOne(ctx context.Context, postID int64) (*RunDetail, error) {
	post, err := e.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, errors.New("post not found")
	}

	if post.Status == models.PostStatusPublished {
		results, err := e.pr.GetPlatformResults(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		return &RunDetail{
			PostID:           post.ID,
			Platforms:        post.Platforms,
			Status:           post.Status,
			AlreadyPublished: true,
			Results:          results,
		}, nil
	}

	switch post.Status {
	case models.PostStatusScheduled:
		claimed, err := e.pr.TryMarkPublishing(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, errors.New("post is already being published")
		}
	case models.PostStatusFailed:
		if post.RetryCount >= e.cfg.MaxRetries {
			return nil, errors.New("post has exhausted its retry budget")
		}
	default:
		return nil, errors.New("post is already being published")
	}

	detail := e.processPost(ctx, post)
	return &detail, nil
}

// processPost dispatches one claimed post to every target platform and
// persists the aggregated outcome.
func (e *Engine) processPost(ctx context.Context, post *models.ScheduledPost) RunDetail {
	detail := RunDetail{PostID: post.ID, Platforms: post.Platforms}

	media, err := e.pm.ListByPostID(ctx, post.ID)
	if err != nil {
		slog.Info(err.Error())
		media = nil
	}
	content := publisher.Content{Post: post, Media: media}

	// Deterministic platform order.
	platforms := append([]string(nil), post.Platforms...)
	sort.Strings(platforms)

	results := make(map[string]models.PublishResult, len(platforms))
	for _, platform := range platforms {
		results[platform] = e.dispatch(ctx, platform, post, content)

		entry := models.PublishLog{
			UserID:       post.UserID,
			PostID:       post.ID,
			Platform:     platform,
			Success:      results[platform].Success,
			ErrorMessage: results[platform].Error,
		}
		if _, err := e.pl.Create(ctx, &entry); err != nil {
			slog.Info("failed to record publish log", "post_id", post.ID, "platform", platform)
		}
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		resultsJSON = []byte("{}")
	}
	detail.Results = resultsJSON

	allOK := true
	chargeRetry := false
	var failures []string
	var failureClass string
	for _, platform := range platforms {
		result := results[platform]
		if result.Success {
			continue
		}
		allOK = false
		failures = append(failures, platform+": "+result.Error)
		if result.Retryable() {
			chargeRetry = true
		}
		if failureClass == "" || result.ErrorClass == models.ErrorClassTransient {
			failureClass = result.ErrorClass
		}
	}

	if allOK {
		completedAt := e.now().UTC()
		if err := e.pr.MarkPublished(ctx, post.ID, resultsJSON, completedAt); err != nil {
			detail.Status = "error"
			detail.Error = err.Error()
			return detail
		}
		detail.Status = models.PostStatusPublished
		return detail
	}

	lastError := strings.Join(failures, "; ")
	if err := e.pr.MarkFailed(ctx, post.ID, lastError, failureClass, resultsJSON, chargeRetry, e.cfg.MaxRetries); err != nil {
		detail.Status = "error"
		detail.Error = err.Error()
		return detail
	}
	detail.Status = models.PostStatusFailed
	detail.Error = lastError
	return detail
}

// dispatch wraps a single platform call with credential resolution and the
// in-tick backoff executor. Non-retryable failures skip the delay entirely.
func (e *Engine) dispatch(ctx context.Context, platform string, post *models.ScheduledPost, content publisher.Content) models.PublishResult {
	pub, ok := e.registry.Get(platform)
	if !ok {
		return models.PublishResult{
			Success:    false,
			ErrorClass: models.ErrorClassValidation,
			Error:      "unknown platform: " + platform,
		}
	}

	cred, err := e.cm.Usable(ctx, post.UserID, platform)
	if err != nil {
		return credentialFailure(platform, err)
	}

	var result models.PublishResult
	op := func() error {
		result = pub.Publish(ctx, cred, content)
		if result.Success {
			return nil
		}
		err := errors.New(result.Error)
		if !result.Retryable() {
			return retry.Permanent(err)
		}
		return err
	}
	if err := retry.Do(ctx, op, e.retryOpts...); err != nil && result.Error == "" {
		// Context cancellation before the first attempt.
		result = models.PublishResult{Success: false, ErrorClass: models.ErrorClassTransient, Error: err.Error()}
	}
	if result.Success {
		if err := e.cm.MarkVerified(ctx, cred.Connection); err != nil {
			slog.Info("failed to mark connection verified", "connection_id", cred.Connection.ID)
		}
	}
	return result
}

func credentialFailure(platform string, err error) models.PublishResult {
	class := models.ErrorClassTransient
	switch {
	case errors.Is(err, credential.ErrNoConnection):
		class = models.ErrorClassConfiguration
	case errors.Is(err, credential.ErrNeedsReconnect):
		class = models.ErrorClassAuthExpired
	}
	return models.PublishResult{
		Success:    false,
		ErrorClass: class,
		Error:      platform + ": " + err.Error(),
	}
}
