package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
)

func wordpressCredential(siteURL string) *credential.Credential {
	return &credential.Credential{
		Connection: &models.Connection{Platform: "wordpress", SiteURL: siteURL},
		Username:   "editor",
		Password:   "app-password",
	}
}

func TestWordPressPublishCreatesPost(t *testing.T) {
	var received wpPostRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "editor", username)
		assert.Equal(t, "app-password", password)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":   42,
			"link": "https://blog.example.com/hello-world",
		})
	}))
	defer server.Close()

	p := NewWordPressPublisher(nil)
	result := p.Publish(context.Background(), wordpressCredential(server.URL), Content{
		Post: &models.ScheduledPost{
			Title:         "Hello, World!",
			Body:          "First paragraph.",
			ScheduledDate: "2024-01-01",
			ScheduledTime: "09:00",
		},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "42", result.PlatformID)
	assert.Equal(t, "https://blog.example.com/hello-world", result.URL)
	assert.Equal(t, "publish", received.Status, "past schedule publishes immediately")
	assert.Equal(t, "hello-world", received.Slug)
	assert.Equal(t, "First paragraph.", received.Excerpt)
}

func TestWordPressPublishFutureDateUsesNativeScheduling(t *testing.T) {
	var received wpPostRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 7, "link": "https://blog.example.com/later"})
	}))
	defer server.Close()

	scheduledAt := time.Now().UTC().Add(48 * time.Hour)
	p := NewWordPressPublisher(nil)
	result := p.Publish(context.Background(), wordpressCredential(server.URL), Content{
		Post: &models.ScheduledPost{
			Title:         "Later",
			Body:          "Scheduled ahead.",
			ScheduledDate: scheduledAt.Format("2006-01-02"),
			ScheduledTime: scheduledAt.Format("15:04"),
		},
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "future", received.Status)
	assert.NotEmpty(t, received.Date)
}

func TestWordPressPublishUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"rest_cannot_create","message":"Invalid credentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewWordPressPublisher(nil)
	result := p.Publish(context.Background(), wordpressCredential(server.URL), Content{
		Post: &models.ScheduledPost{Title: "Hello", Body: "Body"},
	})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorClassAuthExpired, result.ErrorClass)
	assert.False(t, result.Retryable())
}

func TestWordPressPublishMissingSiteURL(t *testing.T) {
	p := NewWordPressPublisher(nil)
	result := p.Publish(context.Background(), wordpressCredential(""), Content{
		Post: &models.ScheduledPost{Title: "Hello", Body: "Body"},
	})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorClassConfiguration, result.ErrorClass)
}

func TestWordPressResolveTermCreatesMissingTerm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/wp-json/wp/v2/categories":
			json.NewEncoder(w).Encode([]map[string]interface{}{})
		case r.Method == http.MethodPost && r.URL.Path == "/wp-json/wp/v2/categories":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 9})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewWordPressPublisher(nil)
	id, err := p.resolveTerm(context.Background(), wordpressCredential(server.URL), server.URL, "categories", "Announcements")
	require.NoError(t, err)
	assert.Equal(t, 9, id)
}

func TestWordPressResolveTermFindsExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": 3, "name": "News"},
			{"id": 5, "name": "Announcements"},
		})
	}))
	defer server.Close()

	p := NewWordPressPublisher(nil)
	id, err := p.resolveTerm(context.Background(), wordpressCredential(server.URL), server.URL, "categories", "announcements")
	require.NoError(t, err)
	assert.Equal(t, 5, id)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello, World!"))
	assert.Equal(t, "10-tips-for-q3", Slugify("  10 Tips for Q3 "))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestDeriveExcerpt(t *testing.T) {
	assert.Equal(t, "one two three", DeriveExcerpt("one\n two\tthree"))

	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	excerpt := DeriveExcerpt(long)
	assert.Len(t, []rune(excerpt), 160)
}
