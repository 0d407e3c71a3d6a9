package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

// WordPressPublisher posts to a self-hosted site through wp-json with an
// application password. A featured image is uploaded first when present,
// category and tag names are resolved to term ids (created when missing),
// and future-dated items use the site's native scheduled status.
type WordPressPublisher struct {
	client *http.Client
	media  MediaFetcher
	now    func() time.Time
}

func NewWordPressPublisher(media MediaFetcher) *WordPressPublisher {
	return &WordPressPublisher{client: newHTTPClient(), media: media, now: time.Now}
}

func (p *WordPressPublisher) Platform() string { return "wordpress" }

type wpPostRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Slug          string `json:"slug"`
	Excerpt       string `json:"excerpt"`
	Status        string `json:"status"`
	Date          string `json:"date_gmt,omitempty"`
	Categories    []int  `json:"categories,omitempty"`
	Tags          []int  `json:"tags,omitempty"`
	FeaturedMedia int    `json:"featured_media,omitempty"`
}

func (p *WordPressPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	siteURL := strings.TrimRight(cred.Connection.SiteURL, "/")
	if siteURL == "" {
		return failure(models.ErrorClassConfiguration, "wordpress: connection has no site url")
	}
	post := content.Post

	request := wpPostRequest{
		Title:   post.Title,
		Content: post.Body,
		Slug:    post.Slug,
		Excerpt: post.Excerpt,
		Status:  "publish",
	}
	if request.Slug == "" {
		request.Slug = Slugify(post.Title)
	}
	if request.Excerpt == "" {
		request.Excerpt = DeriveExcerpt(post.Body)
	}

	if scheduledAt, err := post.ScheduledAt(); err == nil && scheduledAt.After(p.now()) {
		request.Status = "future"
		request.Date = scheduledAt.Format("2006-01-02T15:04:05")
	}

	if image := content.FirstImage(); image != nil {
		mediaID, result := p.uploadFeaturedMedia(ctx, cred, siteURL, image)
		if mediaID == 0 {
			return result
		}
		request.FeaturedMedia = mediaID
	}

	if post.Category != "" {
		id, err := p.resolveTerm(ctx, cred, siteURL, "categories", post.Category)
		if err != nil {
			slog.Info(err.Error())
		} else if id != 0 {
			request.Categories = []int{id}
		}
	}
	for _, tag := range post.Tags {
		id, err := p.resolveTerm(ctx, cred, siteURL, "tags", tag)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if id != 0 {
			request.Tags = append(request.Tags, id)
		}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return failure(models.ErrorClassTransient, "wordpress: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteURL+"/wp-json/wp/v2/posts", bytes.NewBuffer(payload))
	if err != nil {
		return failure(models.ErrorClassTransient, "wordpress: %v", err)
	}
	req.SetBasicAuth(cred.Username, cred.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "wordpress: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusCreated {
		return failureFromStatus("wordpress", resp.StatusCode, body)
	}

	var created struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == 0 {
		return failure(models.ErrorClassTransient, "wordpress: failed to decode post response")
	}

	return success(fmt.Sprintf("%d", created.ID), created.Link)
}

func (p *WordPressPublisher) uploadFeaturedMedia(ctx context.Context, cred *credential.Credential, siteURL string, image *models.PostMedia) (int, models.PublishResult) {
	data, contentType, err := p.media.Fetch(ctx, image)
	if err != nil {
		return 0, failure(models.ErrorClassTransient, "wordpress: failed to fetch media: %v", err)
	}

	filename, err := gonanoid.New()
	if err != nil {
		return 0, failure(models.ErrorClassTransient, "wordpress: %v", err)
	}
	ext := "bin"
	if parts := strings.SplitN(contentType, "/", 2); len(parts) == 2 {
		ext = parts[1]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return 0, failure(models.ErrorClassTransient, "wordpress: %v", err)
	}
	req.SetBasicAuth(cred.Username, cred.Password)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, filename, ext))

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return 0, failure(models.ErrorClassTransient, "wordpress: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusCreated {
		return 0, failureFromStatus("wordpress", resp.StatusCode, body)
	}

	var uploaded struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil || uploaded.ID == 0 {
		return 0, failure(models.ErrorClassTransient, "wordpress: failed to decode media response")
	}
	return uploaded.ID, models.PublishResult{}
}

// resolveTerm finds the id for a category or tag name, creating the term
// when the site does not have it yet.
func (p *WordPressPublisher) resolveTerm(ctx context.Context, cred *credential.Credential, siteURL, taxonomy, name string) (int, error) {
	searchURL := fmt.Sprintf("%s/wp-json/wp/v2/%s?search=%s", siteURL, taxonomy, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(cred.Username, cred.Password)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wordpress: %s lookup returned status %d", taxonomy, resp.StatusCode)
	}

	var terms []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&terms); err != nil {
		return 0, err
	}
	for _, term := range terms {
		if strings.EqualFold(term.Name, name) {
			return term.ID, nil
		}
	}

	return p.createTerm(ctx, cred, siteURL, taxonomy, name)
}

func (p *WordPressPublisher) createTerm(ctx context.Context, cred *credential.Credential, siteURL, taxonomy, name string) (int, error) {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/wp-json/wp/v2/%s", siteURL, taxonomy), bytes.NewBuffer(payload))
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(cred.Username, cred.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("wordpress: %s create returned status %d", taxonomy, resp.StatusCode)
	}

	var term struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&term); err != nil {
		return 0, err
	}
	return term.ID, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

func DeriveExcerpt(body string) string {
	plain := strings.Join(strings.Fields(body), " ")
	if runes := []rune(plain); len(runes) > 160 {
		return string(runes[:160])
	}
	return plain
}
