// Package credential owns the connection lifecycle during a run: decrypt,
// expiry check, refresh against the platform token endpoint, re-encrypt and
// persist. Decrypted secrets stay in memory only and are never logged.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	config "github.com/promoloop/publish-engine/configs"
	"github.com/promoloop/publish-engine/internal/models"
	"github.com/promoloop/publish-engine/internal/repository"
	"github.com/promoloop/publish-engine/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	ErrNoConnection   = errors.New("no active connection for platform")
	ErrNeedsReconnect = errors.New("connection requires re-authorization")
)

// refreshWindow is how close to expiry a token may get before dispatch
// forces a refresh.
const refreshWindow = 5 * time.Minute

// defaultTokenTTL applies when a token endpoint omits expires_in.
const defaultTokenTTL = 3600 * time.Second

const (
	tiktokTokenURL    = "https://open.tiktokapis.com/v2/oauth/token/"
	twitterTokenURL   = "https://api.twitter.com/2/oauth2/token"
	linkedinTokenURL  = "https://www.linkedin.com/oauth/v2/accessToken"
	mediumTokenURL    = "https://api.medium.com/v1/tokens"
	facebookTokenURL  = "https://graph.facebook.com/v19.0/oauth/access_token"
	instagramTokenURL = "https://graph.instagram.com/refresh_access_token"
)

// Credential is the transient, decrypted form of a connection handed to a
// publisher for one dispatch.
type Credential struct {
	Connection  *models.Connection
	AccessToken string
	Username    string
	Password    string
}

type Manager interface {
	Usable(ctx context.Context, userID int64, platform string) (*Credential, error)
	Refresh(ctx context.Context, conn *models.Connection) error
	MarkVerified(ctx context.Context, conn *models.Connection) error
}

type manager struct {
	cfg       config.Config
	cr        repository.ConnectionRepository
	client    *http.Client
	endpoints map[string]string

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

type Option func(*manager)

// WithTokenEndpoint overrides a platform's token endpoint. Used by tests.
func WithTokenEndpoint(platform, endpoint string) Option {
	return func(m *manager) {
		m.endpoints[platform] = endpoint
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(m *manager) {
		m.client = client
	}
}

func NewManager(cfg config.Config, cr repository.ConnectionRepository, opts ...Option) Manager {
	m := &manager{
		cfg:    cfg,
		cr:     cr,
		client: &http.Client{Timeout: 30 * time.Second},
		endpoints: map[string]string{
			"tiktok":    tiktokTokenURL,
			"twitter":   twitterTokenURL,
			"linkedin":  linkedinTokenURL,
			"medium":    mediumTokenURL,
			"facebook":  facebookTokenURL,
			"instagram": instagramTokenURL,
		},
		locks: make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// connLock serializes refreshes per connection so a shared connection is
// never refreshed twice in parallel.
func (m *manager) connLock(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

func (m *manager) Usable(ctx context.Context, userID int64, platform string) (*Credential, error) {
	conn, err := m.cr.GetActive(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNoConnection
	}

	// WordPress holds a static application password; no expiry lifecycle.
	if platform == "wordpress" {
		password, err := utils.Decrypt(conn.AccessToken, []byte(m.cfg.SecretKey))
		if err != nil {
			return nil, err
		}
		return &Credential{Connection: conn, Username: conn.Username, Password: password}, nil
	}

	lock := m.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()

	if time.Until(conn.TokenExpiresAt) >= refreshWindow {
		accessToken, err := utils.Decrypt(conn.AccessToken, []byte(m.cfg.SecretKey))
		if err != nil {
			return nil, err
		}
		return &Credential{Connection: conn, AccessToken: accessToken}, nil
	}

	if err := m.refreshLocked(ctx, conn); err != nil {
		return nil, err
	}

	accessToken, err := utils.Decrypt(conn.AccessToken, []byte(m.cfg.SecretKey))
	if err != nil {
		return nil, err
	}
	return &Credential{Connection: conn, AccessToken: accessToken}, nil
}

// MarkVerified records that the connection's credentials just worked against
// the provider, typically after a successful publish.
func (m *manager) MarkVerified(ctx context.Context, conn *models.Connection) error {
	return m.cr.TouchVerified(ctx, conn.ID)
}

func (m *manager) Refresh(ctx context.Context, conn *models.Connection) error {
	lock := m.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()
	return m.refreshLocked(ctx, conn)
}

// refreshLocked rotates the connection's tokens in place. The caller holds
// the per-connection lock. Any refresh failure means the grant is gone and
// the user has to reconnect; there is no automatic retry path for that.
func (m *manager) refreshLocked(ctx context.Context, conn *models.Connection) error {
	if conn.RefreshToken == "" {
		return ErrNeedsReconnect
	}

	refreshToken, err := utils.Decrypt(conn.RefreshToken, []byte(m.cfg.SecretKey))
	if err != nil {
		return err
	}

	var token *tokenResponse
	switch conn.Platform {
	case "blogger":
		token, err = m.refreshGoogle(ctx, refreshToken)
	case "instagram":
		token, err = m.refreshInstagram(ctx, refreshToken)
	case "facebook":
		token, err = m.exchangeFacebook(ctx, refreshToken)
	default:
		token, err = m.refreshOAuth(ctx, conn.Platform, refreshToken)
	}
	if err != nil {
		slog.Info("token refresh failed", "platform", conn.Platform, "connection_id", conn.ID)
		return fmt.Errorf("%w: %v", ErrNeedsReconnect, err)
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(m.cfg.SecretKey))
	if err != nil {
		return err
	}

	// Keep the old refresh token unless the platform rotated it.
	var encryptedRefreshToken string
	if token.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(m.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	ttl := defaultTokenTTL
	if token.ExpiresIn > 0 {
		ttl = time.Duration(token.ExpiresIn) * time.Second
	}
	expiresAt := time.Now().Add(ttl)

	update := &models.Connection{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: expiresAt,
	}
	if err := m.cr.SetToken(ctx, conn.ID, update); err != nil {
		return err
	}

	conn.AccessToken = encryptedAccessToken
	if encryptedRefreshToken != "" {
		conn.RefreshToken = encryptedRefreshToken
	}
	conn.TokenExpiresAt = expiresAt
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// refreshOAuth covers the platforms with a plain refresh_token grant.
func (m *manager) refreshOAuth(ctx context.Context, platform, refreshToken string) (*tokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	switch platform {
	case "tiktok":
		data.Set("client_key", m.cfg.TiktokClientKey)
		data.Set("client_secret", m.cfg.TiktokClientSecret)
	case "twitter":
		data.Set("client_id", m.cfg.TwitterClientID)
	case "linkedin":
		data.Set("client_id", m.cfg.LinkedinClientID)
		data.Set("client_secret", m.cfg.LinkedinClientSecret)
	case "medium":
		data.Set("client_id", m.cfg.MediumClientID)
		data.Set("client_secret", m.cfg.MediumClientSecret)
	default:
		return nil, fmt.Errorf("platform %s has no token endpoint", platform)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoints[platform], strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token endpoint returned empty access token")
	}
	return &token, nil
}

func (m *manager) refreshGoogle(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	conf := &oauth2.Config{
		ClientID:     m.cfg.GoogleClientID,
		ClientSecret: m.cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/blogger"},
		Endpoint:     google.Endpoint,
	}
	if endpoint, ok := m.endpoints["blogger"]; ok && endpoint != "" {
		conf.Endpoint = oauth2.Endpoint{TokenURL: endpoint}
	}

	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken: token.AccessToken,
		ExpiresIn:   int64(time.Until(token.Expiry) / time.Second),
	}, nil
}

// refreshInstagram extends a long-lived token; Instagram uses the token
// itself as the refresh credential.
func (m *manager) refreshInstagram(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	reqURL := fmt.Sprintf("%s?grant_type=ig_refresh_token&access_token=%s",
		m.endpoints["instagram"], url.QueryEscape(refreshToken))

	token, err := m.getToken(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	// The extended token keeps serving as the refresh credential.
	token.RefreshToken = token.AccessToken
	return token, nil
}

// exchangeFacebook trades the stored long-lived token for a fresh one.
func (m *manager) exchangeFacebook(ctx context.Context, exchangeToken string) (*tokenResponse, error) {
	reqURL := fmt.Sprintf("%s?grant_type=fb_exchange_token&client_id=%s&client_secret=%s&fb_exchange_token=%s",
		m.endpoints["facebook"], url.QueryEscape(m.cfg.FacebookAppID),
		url.QueryEscape(m.cfg.FacebookAppSecret), url.QueryEscape(exchangeToken))

	token, err := m.getToken(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	token.RefreshToken = token.AccessToken
	return token, nil
}

func (m *manager) getToken(ctx context.Context, reqURL string) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token endpoint returned empty access token")
	}
	return &token, nil
}
