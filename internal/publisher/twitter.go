package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

const twitterAPIURL = "https://api.twitter.com/2"

const tweetMaxRunes = 280

type TwitterPublisher struct {
	BaseURL string
	client  *http.Client
}

func NewTwitterPublisher() *TwitterPublisher {
	return &TwitterPublisher{BaseURL: twitterAPIURL, client: newHTTPClient()}
}

func (p *TwitterPublisher) Platform() string { return "twitter" }

func (p *TwitterPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	text := content.Post.Caption
	if runes := []rune(text); len(runes) > tweetMaxRunes {
		text = string(runes[:tweetMaxRunes-1]) + "…"
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return failure(models.ErrorClassTransient, "twitter: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/tweets", bytes.NewBuffer(payload))
	if err != nil {
		return failure(models.ErrorClassTransient, "twitter: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "twitter: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusCreated {
		return failureFromStatus("twitter", resp.StatusCode, body)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Data.ID == "" {
		return failure(models.ErrorClassTransient, "twitter: failed to decode tweet response")
	}

	return success(result.Data.ID, "https://x.com/i/web/status/"+result.Data.ID)
}
