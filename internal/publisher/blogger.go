package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/blogger/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// BloggerPublisher writes to a Blogger blog through the Google API client,
// authenticating with the connection's OAuth token. The blog id lives in the
// connection's page id field.
type BloggerPublisher struct {
	// Endpoint overrides the Google API base URL. Used by tests.
	Endpoint string
	now      func() time.Time
}

func NewBloggerPublisher() *BloggerPublisher {
	return &BloggerPublisher{now: time.Now}
}

func (p *BloggerPublisher) Platform() string { return "blogger" }

func (p *BloggerPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	blogID := cred.Connection.PageID
	if blogID == "" {
		return failure(models.ErrorClassConfiguration, "blogger: connection has no blog id")
	}

	token := &oauth2.Token{AccessToken: cred.AccessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.Endpoint))
	}

	service, err := blogger.NewService(ctx, opts...)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "blogger: %v", err)
	}

	post := &blogger.Post{
		Title:   content.Post.Title,
		Content: content.Post.Body,
	}
	if scheduledAt, err := content.Post.ScheduledAt(); err == nil && scheduledAt.After(p.now()) {
		post.Published = scheduledAt.Format(time.RFC3339)
	}

	created, err := service.Posts.Insert(blogID, post).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		if apiErr, ok := err.(*googleapi.Error); ok {
			return failureFromStatus("blogger", apiErr.Code, []byte(apiErr.Message))
		}
		return failure(models.ErrorClassTransient, "blogger: %v", err)
	}

	return success(created.Id, created.Url)
}
