package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

func twitterCredential() *credential.Credential {
	return &credential.Credential{
		Connection:  &models.Connection{Platform: "twitter"},
		AccessToken: "token",
	}
}

func TestTwitterPublishCreatesTweet(t *testing.T) {
	var received struct {
		Text string `json:"text"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tweets", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "1750000000000000000"},
		})
	}))
	defer server.Close()

	p := NewTwitterPublisher()
	p.BaseURL = server.URL
	result := p.Publish(context.Background(), twitterCredential(), Content{
		Post: &models.ScheduledPost{Caption: "short and sweet"},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "1750000000000000000", result.PlatformID)
	assert.Equal(t, "https://x.com/i/web/status/1750000000000000000", result.URL)
	assert.Equal(t, "short and sweet", received.Text)
}

func TestTwitterPublishTruncatesLongCaption(t *testing.T) {
	var received struct {
		Text string `json:"text"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "1"},
		})
	}))
	defer server.Close()

	p := NewTwitterPublisher()
	p.BaseURL = server.URL
	result := p.Publish(context.Background(), twitterCredential(), Content{
		Post: &models.ScheduledPost{Caption: strings.Repeat("a", 400)},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 280, utf8.RuneCountInString(received.Text))
	assert.True(t, strings.HasSuffix(received.Text, "…"))
}

func TestTwitterPublishErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		wantClass string
	}{
		{"expired token", http.StatusUnauthorized, models.ErrorClassAuthExpired},
		{"permission denied", http.StatusForbidden, models.ErrorClassValidation},
		{"rate limited", http.StatusTooManyRequests, models.ErrorClassTransient},
		{"server error", http.StatusInternalServerError, models.ErrorClassTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"detail":"nope"}`, tc.status)
			}))
			defer server.Close()

			p := NewTwitterPublisher()
			p.BaseURL = server.URL
			result := p.Publish(context.Background(), twitterCredential(), Content{
				Post: &models.ScheduledPost{Caption: "hello"},
			})

			assert.False(t, result.Success)
			assert.Equal(t, tc.wantClass, result.ErrorClass)
			assert.Equal(t, tc.wantClass == models.ErrorClassTransient, result.Retryable())
		})
	}
}
