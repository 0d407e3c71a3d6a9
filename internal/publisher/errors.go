package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/promoloop/publish-engine/internal/models"
)

func success(postID, postURL string) models.PublishResult {
	return models.PublishResult{Success: true, PlatformID: postID, URL: postURL}
}

func failure(class, format string, args ...interface{}) models.PublishResult {
	return models.PublishResult{
		Success:    false,
		ErrorClass: class,
		Error:      fmt.Sprintf(format, args...),
	}
}

// failureFromStatus maps a provider HTTP response to the error taxonomy:
// 401 means the token died under us, 403 is a deterministic permission
// problem, anything else non-2xx is treated as transient.
func failureFromStatus(platform string, status int, body []byte) models.PublishResult {
	msg := providerMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return failure(models.ErrorClassAuthExpired, "%s: access token rejected (401): %s", platform, msg)
	case http.StatusForbidden:
		return failure(models.ErrorClassValidation, "%s: permission denied (403): %s", platform, msg)
	default:
		return failure(models.ErrorClassTransient, "%s: unexpected status %d: %s", platform, status, msg)
	}
}

// providerMessage pulls a human-readable error out of common provider error
// envelopes, falling back to a truncated raw body.
func providerMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Error.Message != "":
			return envelope.Error.Message
		case envelope.Message != "":
			return envelope.Message
		case envelope.Detail != "":
			return envelope.Detail
		}
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return string(trimmed)
}

func readBody(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return body
}
