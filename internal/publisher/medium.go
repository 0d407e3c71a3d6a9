package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

const mediumAPIURL = "https://api.medium.com/v1"

// MediumPublisher resolves the authenticated author id, then creates the
// story. Medium has no native scheduling, so future items publish
// immediately when dispatched.
type MediumPublisher struct {
	BaseURL string
	client  *http.Client
}

func NewMediumPublisher() *MediumPublisher {
	return &MediumPublisher{BaseURL: mediumAPIURL, client: newHTTPClient()}
}

func (p *MediumPublisher) Platform() string { return "medium" }

type mediumPostRequest struct {
	Title         string   `json:"title"`
	ContentFormat string   `json:"contentFormat"`
	Content       string   `json:"content"`
	Tags          []string `json:"tags,omitempty"`
	PublishStatus string   `json:"publishStatus"`
}

func (p *MediumPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	authorID := cred.Connection.AccountID
	if authorID == "" {
		id, result := p.lookupAuthor(ctx, cred.AccessToken)
		if id == "" {
			return result
		}
		authorID = id
	}

	request := mediumPostRequest{
		Title:         content.Post.Title,
		ContentFormat: "html",
		Content:       content.Post.Body,
		Tags:          content.Post.Tags,
		PublishStatus: "public",
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return failure(models.ErrorClassTransient, "medium: %v", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/posts", p.BaseURL, authorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return failure(models.ErrorClassTransient, "medium: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "medium: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusCreated {
		return failureFromStatus("medium", resp.StatusCode, body)
	}

	var created struct {
		Data struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.Data.ID == "" {
		return failure(models.ErrorClassTransient, "medium: failed to decode post response")
	}

	return success(created.Data.ID, created.Data.URL)
}

func (p *MediumPublisher) lookupAuthor(ctx context.Context, accessToken string) (string, models.PublishResult) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/me", nil)
	if err != nil {
		return "", failure(models.ErrorClassTransient, "medium: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", failure(models.ErrorClassTransient, "medium: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", failureFromStatus("medium", resp.StatusCode, body)
	}

	var me struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &me); err != nil || me.Data.ID == "" {
		return "", failure(models.ErrorClassTransient, "medium: failed to resolve author id")
	}
	return me.Data.ID, models.PublishResult{}
}
