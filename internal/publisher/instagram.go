package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

const instagramGraphURL = "https://graph.instagram.com/v19.0"

// InstagramPublisher runs the two-step container protocol: create a media
// container, then publish referencing the container id.
type InstagramPublisher struct {
	BaseURL string
	client  *http.Client
}

func NewInstagramPublisher() *InstagramPublisher {
	return &InstagramPublisher{BaseURL: instagramGraphURL, client: newHTTPClient()}
}

func (p *InstagramPublisher) Platform() string { return "instagram" }

func (p *InstagramPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	accountID := cred.Connection.AccountID

	data := url.Values{}
	data.Set("caption", content.Post.Caption)
	switch {
	case content.FirstImage() != nil:
		data.Set("image_url", content.FirstImage().FileURL)
	case content.FirstVideo() != nil:
		data.Set("media_type", "REELS")
		data.Set("video_url", content.FirstVideo().FileURL)
	default:
		return failure(models.ErrorClassValidation, "instagram: post has no media; an image or video is required")
	}

	containerID, result := p.createContainer(ctx, cred.AccessToken, accountID, data)
	if containerID == "" {
		return result
	}

	return p.publishContainer(ctx, cred.AccessToken, accountID, containerID)
}

func (p *InstagramPublisher) createContainer(ctx context.Context, accessToken, accountID string, data url.Values) (string, models.PublishResult) {
	endpoint := fmt.Sprintf("%s/%s/media", p.BaseURL, accountID)
	data.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return "", failure(models.ErrorClassTransient, "instagram: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", failure(models.ErrorClassTransient, "instagram: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", failureFromStatus("instagram", resp.StatusCode, body)
	}

	var container struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &container); err != nil || container.ID == "" {
		return "", failure(models.ErrorClassTransient, "instagram: failed to create media container")
	}
	return container.ID, models.PublishResult{}
}

func (p *InstagramPublisher) publishContainer(ctx context.Context, accessToken, accountID, containerID string) models.PublishResult {
	endpoint := fmt.Sprintf("%s/%s/media_publish", p.BaseURL, accountID)
	data := url.Values{}
	data.Set("creation_id", containerID)
	data.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return failure(models.ErrorClassTransient, "instagram: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "instagram: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return failureFromStatus("instagram", resp.StatusCode, body)
	}

	var published struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &published); err != nil || published.ID == "" {
		return failure(models.ErrorClassTransient, "instagram: failed to decode publish response")
	}

	return success(published.ID, p.permalink(ctx, accessToken, published.ID))
}

// permalink is best effort; a missing permalink never fails the publish.
func (p *InstagramPublisher) permalink(ctx context.Context, accessToken, mediaID string) string {
	reqURL := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", p.BaseURL, mediaID, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ""
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var media struct {
		Permalink string `json:"permalink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return ""
	}
	return media.Permalink
}
