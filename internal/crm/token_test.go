package crm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"admissionsbot/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"title":"error"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","token_type":"Bearer","expires_in":86400}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestNewTokenSource(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("NoCredentials", func(t *testing.T) {
		_, err := NewTokenSource(testOAuthConfig("http://unused"), nil, "", &logger)
		assert.ErrorIs(t, err, domain.ErrPermanent)
	})

	t.Run("PrefersCache", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token_cache")
		require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"cached","refresh_token":"rc","expires_at":4102444800}`), 0o600))

		ts, err := NewTokenSource(testOAuthConfig("http://unused"), &oauth2.Token{AccessToken: "config"}, path, &logger)
		require.NoError(t, err)

		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "cached", tok.AccessToken)
	})

	t.Run("BrokenCache", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token_cache")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))

		_, err := NewTokenSource(testOAuthConfig("http://unused"), &oauth2.Token{AccessToken: "config"}, path, &logger)
		assert.Error(t, err)
	})
}

func TestTokenSourceRefresh(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("ExpiredTokenIsRefreshedAndCached", func(t *testing.T) {
		srv, calls := tokenServer(t, http.StatusOK)
		path := filepath.Join(t.TempDir(), "cache", "token")

		expired := &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: time.Now().Add(time.Minute)}
		ts, err := NewTokenSource(testOAuthConfig(srv.URL), expired, path, &logger)
		require.NoError(t, err)

		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "a2", tok.AccessToken)
		assert.Equal(t, int32(1), atomic.LoadInt32(calls))

		// the fresh token is reused
		_, err = ts.Token()
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(calls))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var cached cachedToken
		require.NoError(t, json.Unmarshal(data, &cached))
		assert.Equal(t, "a2", cached.AccessToken)
		assert.Equal(t, "r2", cached.RefreshToken)
		assert.Greater(t, cached.ExpiresAt, float64(time.Now().Unix()))

		reloaded, err := NewTokenSource(testOAuthConfig(srv.URL), nil, path, &logger)
		require.NoError(t, err)
		tok, err = reloaded.Token()
		require.NoError(t, err)
		assert.Equal(t, "a2", tok.AccessToken)
	})

	t.Run("RejectedRefreshIsPermanent", func(t *testing.T) {
		srv, _ := tokenServer(t, http.StatusBadRequest)
		ts, err := NewTokenSource(testOAuthConfig(srv.URL), &oauth2.Token{RefreshToken: "r1"}, "", &logger)
		require.NoError(t, err)

		_, err = ts.Token()
		assert.ErrorIs(t, err, domain.ErrPermanent)
	})

	t.Run("ServerErrorIsTransient", func(t *testing.T) {
		srv, _ := tokenServer(t, http.StatusServiceUnavailable)
		ts, err := NewTokenSource(testOAuthConfig(srv.URL), &oauth2.Token{RefreshToken: "r1"}, "", &logger)
		require.NoError(t, err)

		err = ts.Refresh(testContext(t))
		assert.ErrorIs(t, err, domain.ErrTransient)
	})

	t.Run("NoRefreshToken", func(t *testing.T) {
		ts, err := NewTokenSource(testOAuthConfig("http://unused"), &oauth2.Token{AccessToken: "a1", Expiry: time.Now().Add(-time.Hour)}, "", &logger)
		require.NoError(t, err)

		_, err = ts.Token()
		assert.ErrorIs(t, err, domain.ErrPermanent)
	})
}

func TestTokenRefresher(t *testing.T) {
	logger := zerolog.Nop()
	srv, calls := tokenServer(t, http.StatusOK)

	ts, err := NewTokenSource(testOAuthConfig(srv.URL), &oauth2.Token{
		AccessToken:  "a1",
		RefreshToken: "r1",
		Expiry:       time.Now().Add(20 * time.Minute),
	}, "", &logger)
	require.NoError(t, err)

	r := NewTokenRefresher(ts, time.Hour, &logger)
	r.refreshIfNeeded(testContext(t))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	// a day-long token is far from the refresh window
	r.refreshIfNeeded(testContext(t))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.False(t, ts.ExpiresWithin(time.Hour))
}
