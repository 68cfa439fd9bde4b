package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globot/syncbot/config"
)

func newTestClient(t *testing.T, url string, enabled bool) *Client {
	t.Helper()
	return NewClient(&config.TranslateConfig{
		Enabled:        enabled,
		URL:            url,
		TimeoutSec:     2,
		MaxConcurrency: 4,
		LanguageTTLSec: 60,
	}, nil, nil, 0)
}

func fakeService(t *testing.T, detected string) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/translate":
			atomic.AddInt64(&calls, 1)
			var req translateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			resp := translateResponse{TranslatedText: "[" + req.Target + "]" + req.Q}
			resp.DetectedLanguage.Language = detected
			json.NewEncoder(w).Encode(resp)
		case "/languages":
			json.NewEncoder(w).Encode([]languageEntry{
				{Code: "en", Name: "English"},
				{Code: "fr", Name: "French"},
				{Code: "es", Name: "Spanish"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTranslate(t *testing.T) {
	srv, _ := fakeService(t, "en")
	client := newTestClient(t, srv.URL, true)

	res, err := client.Translate(context.Background(), "hello", "auto", "fr")
	require.NoError(t, err)
	assert.Equal(t, "[fr]hello", res.Text)
	assert.Equal(t, "en", res.DetectedSource)
}

func TestTranslate_SameSourceBypassesService(t *testing.T) {
	srv, calls := fakeService(t, "en")
	client := newTestClient(t, srv.URL, true)

	res, err := client.Translate(context.Background(), "hello", "en", "en")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, int64(0), *calls)
}

func TestTranslate_DetectedEqualsTarget_ReturnsOriginal(t *testing.T) {
	srv, calls := fakeService(t, "fr")
	client := newTestClient(t, srv.URL, true)

	res, err := client.Translate(context.Background(), "bonjour", "auto", "fr")
	require.NoError(t, err)
	// The service was consulted, but its round-tripped text is discarded.
	assert.Equal(t, "bonjour", res.Text)
	assert.Equal(t, int64(1), *calls)
}

func TestTranslate_Disabled(t *testing.T) {
	srv, calls := fakeService(t, "en")
	client := newTestClient(t, srv.URL, false)

	res, err := client.Translate(context.Background(), "hello", "auto", "fr")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, int64(0), *calls)
}

func TestTranslate_ServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL, true)

	_, err := client.Translate(context.Background(), "hello", "auto", "fr")
	assert.ErrorIs(t, err, ErrTranslationUnavailable)
}

func TestTranslate_UnsupportedLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL, true)

	_, err := client.Translate(context.Background(), "hello", "auto", "zz")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestLanguages(t *testing.T) {
	srv, _ := fakeService(t, "en")
	client := newTestClient(t, srv.URL, true)

	codes, err := client.Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "es", "fr"}, codes)
}

func TestLanguages_CachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srv, _ := fakeService(t, "en")
	client := NewClient(&config.TranslateConfig{
		Enabled:        true,
		URL:            srv.URL,
		TimeoutSec:     2,
		MaxConcurrency: 4,
		LanguageTTLSec: 60,
	}, redisClient, nil, 0)

	ctx := context.Background()
	first, err := client.Languages(ctx)
	require.NoError(t, err)

	// Service gone; the cached set must still answer.
	srv.Close()
	second, err := client.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
