// Package publisher translates canonical post content into platform-specific
// requests. Every adapter converts its own failures into a PublishResult;
// nothing escapes an adapter boundary, so one platform cannot abort its
// siblings.
package publisher

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

type Content struct {
	Post  *models.ScheduledPost
	Media []*models.PostMedia
}

func (c Content) FirstImage() *models.PostMedia {
	for _, m := range c.Media {
		if m.MediaKind == "image" {
			return m
		}
	}
	return nil
}

func (c Content) FirstVideo() *models.PostMedia {
	for _, m := range c.Media {
		if m.MediaKind == "video" {
			return m
		}
	}
	return nil
}

type Publisher interface {
	Platform() string
	Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult
}

// Registry maps platform identifiers to adapters. Adding a platform means
// registering one more Publisher; the engine never switches on platform names.
type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher)}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

func (r *Registry) Get(platform string) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
