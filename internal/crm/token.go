package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// expiryMargin is how early a token is treated as expired.
const expiryMargin = 5 * time.Minute

// OAuthConfig builds the refresh-grant configuration for the account.
func OAuthConfig(cfg config.CRMConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.BaseURL() + "/oauth2/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// TokenSource is an oauth2.TokenSource that refreshes the amoCRM access
// token with the refresh grant and keeps the latest pair in a cache file so
// a restart does not reuse a rotated refresh token.
type TokenSource struct {
	mu         sync.Mutex
	conf       *oauth2.Config
	token      *oauth2.Token
	cachePath  string
	httpClient *http.Client
	logger     *zerolog.Logger
	now        func() time.Time
}

type cachedToken struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"`
}

// NewTokenSource prefers the cache file and falls back to initial when the
// cache is missing.
func NewTokenSource(conf *oauth2.Config, initial *oauth2.Token, cachePath string, logger *zerolog.Logger) (*TokenSource, error) {
	s := &TokenSource{
		conf:       conf,
		cachePath:  cachePath,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		now:        time.Now,
	}

	cached, err := loadTokenCache(cachePath)
	switch {
	case err == nil:
		s.token = cached
		logger.Info().Str("path", cachePath).Msg("Loaded CRM token from cache")
	case errors.Is(err, os.ErrNotExist):
		if initial == nil {
			initial = &oauth2.Token{}
		}
		s.token = initial
	default:
		return nil, fmt.Errorf("load token cache: %w", err)
	}

	if s.token.AccessToken == "" && s.token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no CRM access or refresh token", domain.ErrPermanent)
	}
	return s, nil
}

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.validLocked(0) {
		t := *s.token
		return &t, nil
	}
	if err := s.refreshLocked(context.Background()); err != nil {
		return nil, err
	}
	t := *s.token
	return &t, nil
}

// Refresh forces a refresh grant regardless of expiry.
func (s *TokenSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// ExpiresWithin reports whether the token expires within d. Tokens without
// an expiry never do.
func (s *TokenSource) ExpiresWithin(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.validLocked(d)
}

func (s *TokenSource) validLocked(extra time.Duration) bool {
	if s.token == nil || s.token.AccessToken == "" {
		return false
	}
	if s.token.Expiry.IsZero() {
		return true
	}
	return s.now().Add(expiryMargin + extra).Before(s.token.Expiry)
}

func (s *TokenSource) refreshLocked(ctx context.Context) error {
	if s.token.RefreshToken == "" {
		return fmt.Errorf("%w: CRM token expired and no refresh token is set", domain.ErrPermanent)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	fresh, err := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.token.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil &&
			re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 &&
			re.Response.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: refresh CRM token: %v", domain.ErrPermanent, err)
		}
		return fmt.Errorf("%w: refresh CRM token: %v", domain.ErrTransient, err)
	}

	s.token = fresh
	s.logger.Info().Time("expires_at", fresh.Expiry).Msg("CRM access token refreshed")

	if err := saveTokenCache(s.cachePath, fresh); err != nil {
		s.logger.Warn().Err(err).Msg("Could not save CRM token cache")
	}
	return nil
}

func loadTokenCache(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c cachedToken
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	t := &oauth2.Token{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken, TokenType: "Bearer"}
	if c.ExpiresAt > 0 {
		t.Expiry = time.Unix(int64(c.ExpiresAt), 0)
	}
	return t, nil
}

func saveTokenCache(path string, t *oauth2.Token) error {
	if path == "" {
		return nil
	}
	c := cachedToken{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	if !t.Expiry.IsZero() {
		c.ExpiresAt = float64(t.Expiry.Unix())
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// TokenRefresher refreshes the token ahead of expiry so user-facing calls
// rarely pay for a refresh.
type TokenRefresher struct {
	source   *TokenSource
	interval time.Duration
	logger   *zerolog.Logger
}

func NewTokenRefresher(source *TokenSource, interval time.Duration, logger *zerolog.Logger) *TokenRefresher {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &TokenRefresher{source: source, interval: interval, logger: logger}
}

// Run blocks until ctx is done.
func (r *TokenRefresher) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("CRM token refresher started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.refreshIfNeeded(ctx)
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("CRM token refresher stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *TokenRefresher) refreshIfNeeded(ctx context.Context) {
	if !r.source.ExpiresWithin(r.interval) {
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.interval / 2

	err := backoff.Retry(func() error {
		err := r.source.Refresh(ctx)
		if err != nil && errors.Is(err, domain.ErrPermanent) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		r.logger.Error().Err(err).Msg("CRM token refresh failed")
	}
}
