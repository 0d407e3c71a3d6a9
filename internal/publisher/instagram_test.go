package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

func instagramCredential() *credential.Credential {
	return &credential.Credential{
		Connection:  &models.Connection{Platform: "instagram", AccountID: "17841400000000000"},
		AccessToken: "token",
	}
}

func TestInstagramPublishRequiresMedia(t *testing.T) {
	p := NewInstagramPublisher()
	result := p.Publish(context.Background(), instagramCredential(), Content{
		Post: &models.ScheduledPost{Caption: "no media here"},
	})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorClassValidation, result.ErrorClass)
	assert.False(t, result.Retryable())
}

func TestInstagramPublishContainerFlow(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/17841400000000000/media":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "beach day", r.Form.Get("caption"))
			assert.Equal(t, "https://cdn.example.com/beach.jpg", r.Form.Get("image_url"))
			json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
		case "/17841400000000000/media_publish":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "container-1", r.Form.Get("creation_id"))
			json.NewEncoder(w).Encode(map[string]string{"id": "media-9"})
		case "/media-9":
			json.NewEncoder(w).Encode(map[string]string{"permalink": "https://www.instagram.com/p/abc/"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewInstagramPublisher()
	p.BaseURL = server.URL
	result := p.Publish(context.Background(), instagramCredential(), Content{
		Post: &models.ScheduledPost{Caption: "beach day"},
		Media: []*models.PostMedia{
			{MediaKind: "image", FileURL: "https://cdn.example.com/beach.jpg"},
		},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "media-9", result.PlatformID)
	assert.Equal(t, "https://www.instagram.com/p/abc/", result.URL)
	assert.Equal(t, []string{"/17841400000000000/media", "/17841400000000000/media_publish", "/media-9"}, paths)
}

func TestInstagramPublishVideoUsesReels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/17841400000000000/media":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "REELS", r.Form.Get("media_type"))
			assert.Equal(t, "https://cdn.example.com/clip.mp4", r.Form.Get("video_url"))
			json.NewEncoder(w).Encode(map[string]string{"id": "container-2"})
		case "/17841400000000000/media_publish":
			json.NewEncoder(w).Encode(map[string]string{"id": "media-10"})
		default:
			// Permalink lookup fails; publish must still succeed.
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewInstagramPublisher()
	p.BaseURL = server.URL
	result := p.Publish(context.Background(), instagramCredential(), Content{
		Post: &models.ScheduledPost{Caption: "clip"},
		Media: []*models.PostMedia{
			{MediaKind: "video", FileURL: "https://cdn.example.com/clip.mp4"},
		},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "media-10", result.PlatformID)
	assert.Empty(t, result.URL)
}

func TestInstagramPublishExpiredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Error validating access token"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewInstagramPublisher()
	p.BaseURL = server.URL
	result := p.Publish(context.Background(), instagramCredential(), Content{
		Post: &models.ScheduledPost{Caption: "beach day"},
		Media: []*models.PostMedia{
			{MediaKind: "image", FileURL: "https://cdn.example.com/beach.jpg"},
		},
	})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorClassAuthExpired, result.ErrorClass)
	assert.Contains(t, result.Error, "Error validating access token")
}
