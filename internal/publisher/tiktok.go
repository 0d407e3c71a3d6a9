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

const tiktokAPIURL = "https://open.tiktokapis.com/v2"

// TikTokPublisher does the direct-post video flow: query creator info, then
// init a PULL_FROM_URL upload. TikTok processes the video asynchronously, so
// there is no post URL at publish time.
type TikTokPublisher struct {
	BaseURL string
	client  *http.Client
}

func NewTikTokPublisher() *TikTokPublisher {
	return &TikTokPublisher{BaseURL: tiktokAPIURL, client: newHTTPClient()}
}

func (p *TikTokPublisher) Platform() string { return "tiktok" }

type tiktokPostInfo struct {
	Title                 string `json:"title"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms"`
}

type tiktokSourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type tiktokUploadRequest struct {
	PostInfo   tiktokPostInfo   `json:"post_info"`
	SourceInfo tiktokSourceInfo `json:"source_info"`
}

type tiktokUploadResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *TikTokPublisher) Publish(ctx context.Context, cred *credential.Credential, content Content) models.PublishResult {
	video := content.FirstVideo()
	if video == nil {
		return failure(models.ErrorClassValidation, "tiktok: post has no video; tiktok requires video media")
	}

	if result := p.queryCreatorInfo(ctx, cred.AccessToken); !result.Success && result.Error != "" {
		return result
	}

	uploadRequest := tiktokUploadRequest{
		PostInfo: tiktokPostInfo{
			Title:                 content.Post.Caption,
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: tiktokSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: video.FileURL,
		},
	}

	payload, err := json.Marshal(uploadRequest)
	if err != nil {
		return failure(models.ErrorClassTransient, "tiktok: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/post/publish/video/init/", bytes.NewBuffer(payload))
	if err != nil {
		return failure(models.ErrorClassTransient, "tiktok: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "tiktok: %v", err)
	}
	defer resp.Body.Close()

	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return failureFromStatus("tiktok", resp.StatusCode, body)
	}

	var result tiktokUploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return failure(models.ErrorClassTransient, "tiktok: failed to decode upload response: %v", err)
	}
	if result.Data.PublishID == "" {
		return failure(models.ErrorClassTransient, "tiktok: publish init failed: %s", result.Error.Message)
	}

	return success(result.Data.PublishID, "")
}

func (p *TikTokPublisher) queryCreatorInfo(ctx context.Context, accessToken string) models.PublishResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/post/publish/creator_info/query/", nil)
	if err != nil {
		return failure(models.ErrorClassTransient, "tiktok: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return failure(models.ErrorClassTransient, "tiktok: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failureFromStatus("tiktok", resp.StatusCode, readBody(resp))
	}
	return models.PublishResult{Success: true}
}
