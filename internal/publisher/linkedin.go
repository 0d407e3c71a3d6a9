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

const linkedinAPIURL = "https://api.linkedin.com/v2"

type LinkedinPublisher struct {
	BaseURL string
	client  *http.Client
}

func NewLinkedinPublisher() *LinkedinPublisher {
	return &LinkedinPublisher{BaseURL: linkedinAPIURL, client: newHTTPClient()}
}

func (p *LinkedinPublisher) Platform() string { return "linkedin" }

type linkedinShareRequest struct {
	Author          string                    `json:"author"`
	LifecycleState  string                    `json:"lifecycleState"`
	SpecificContent linkedinSpecificContent   `json:"specificContent"`
	Visibility      map[string]string         `json:"visibility"`
}

type linkedinSpecificContent struct {
	ShareContent linkedinShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type linkedinShareContent struct {
	ShareCommentary    linkedinText `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
}

type linkedinText struct {
	Text string `json:"text"`
}

func (p *LinkedinPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	share := linkedinShareRequest{
		Author:         "urn:li:person:" + cred.Connection.AccountID,
		LifecycleState: "PUBLISHED",
		SpecificContent: linkedinSpecificContent{
			ShareContent: linkedinShareContent{
				ShareCommentary:    linkedinText{Text: content.Post.Caption},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	payload, err := json.Marshal(share)
	if err != nil {
		return failure(models.ErrorClassTransient, "linkedin: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/ugcPosts", bytes.NewBuffer(payload))
	if err != nil {
		return failure(models.ErrorClassTransient, "linkedin: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "linkedin: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusCreated {
		return failureFromStatus("linkedin", resp.StatusCode, body)
	}

	shareID := resp.Header.Get("X-RestLi-Id")
	if shareID == "" {
		var result struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &result); err == nil {
			shareID = result.ID
		}
	}
	if shareID == "" {
		return failure(models.ErrorClassTransient, "linkedin: share created but no id returned")
	}

	return success(shareID, "https://www.linkedin.com/feed/update/"+shareID)
}
