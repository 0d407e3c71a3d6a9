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

const facebookGraphURL = "https://graph.facebook.com/v19.0"

type FacebookPublisher struct {
	BaseURL string
	client  *http.Client
}

func NewFacebookPublisher() *FacebookPublisher {
	return &FacebookPublisher{BaseURL: facebookGraphURL, client: newHTTPClient()}
}

func (p *FacebookPublisher) Platform() string { return "facebook" }

func (p *FacebookPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	pageID := cred.Connection.PageID
	if pageID == "" {
		return failure(models.ErrorClassConfiguration, "facebook: connection has no page id")
	}

	endpoint := fmt.Sprintf("%s/%s/feed", p.BaseURL, pageID)
	data := url.Values{}
	data.Set("message", content.Post.Caption)
	data.Set("access_token", cred.AccessToken)

	if image := content.FirstImage(); image != nil {
		endpoint = fmt.Sprintf("%s/%s/photos", p.BaseURL, pageID)
		data.Set("url", image.FileURL)
		data.Del("message")
		data.Set("caption", content.Post.Caption)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return failure(models.ErrorClassTransient, "facebook: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "facebook: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return failureFromStatus("facebook", resp.StatusCode, body)
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "facebook: failed to decode response: %v", err)
	}

	postID := result.PostID
	if postID == "" {
		postID = result.ID
	}
	return success(postID, "https://www.facebook.com/"+postID)
}
