package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/globot/syncbot/config"
	"github.com/globot/syncbot/utils/ratelimit"
)

var (
	ErrTranslationUnavailable = errors.New("translation service unavailable")
	ErrUnsupportedLanguage    = errors.New("unsupported target language")
)

const languagesCacheKey = "translate:languages"

// Result is one translation outcome.
type Result struct {
	Text           string
	DetectedSource string
}

// Translator is the stateless proxy to the translation service.
type Translator interface {
	// Translate renders text into target. source may be "auto"; when source
	// and target match, the text is returned unchanged without a service call.
	Translate(ctx context.Context, text, source, target string) (Result, error)

	// Languages returns the service's advertised language codes.
	Languages(ctx context.Context) ([]string, error)
}

// Client talks to a LibreTranslate-shaped HTTP service. Outstanding calls are
// capped by a semaphore; callers over the cap queue rather than fail. The
// advertised language set is cached in Redis.
type Client struct {
	baseURL    string
	httpClient *http.Client
	enabled    bool

	sem     chan struct{}
	limiter ratelimit.Limiter
	qps     int

	redisClient *redis.Client
	languageTTL time.Duration
}

func NewClient(cfg *config.TranslateConfig, redisClient *redis.Client, limiter ratelimit.Limiter, qps int) *Client {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 8
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := time.Duration(cfg.LanguageTTLSec) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Client{
		baseURL:     cfg.URL,
		httpClient:  &http.Client{Timeout: timeout},
		enabled:     cfg.Enabled,
		sem:         make(chan struct{}, maxConc),
		limiter:     limiter,
		qps:         qps,
		redisClient: redisClient,
		languageTTL: ttl,
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage struct {
		Language string `json:"language"`
	} `json:"detectedLanguage"`
}

func (c *Client) Translate(ctx context.Context, text, source, target string) (Result, error) {
	if !c.enabled {
		return Result{Text: text, DetectedSource: source}, nil
	}
	if source == "" {
		source = "auto"
	}
	if source == target {
		return Result{Text: text, DetectedSource: source}, nil
	}

	if err := c.acquire(ctx, "translate"); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}
	defer c.release()

	body, err := json.Marshal(translateRequest{Q: text, Source: source, Target: target})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, target)
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("%w: status %d", ErrTranslationUnavailable, resp.StatusCode)
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}

	// Identical-language round trips distort text for no benefit.
	if out.DetectedLanguage.Language == target {
		return Result{Text: text, DetectedSource: out.DetectedLanguage.Language}, nil
	}
	return Result{Text: out.TranslatedText, DetectedSource: out.DetectedLanguage.Language}, nil
}

type languageEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (c *Client) Languages(ctx context.Context) ([]string, error) {
	if c.redisClient != nil {
		if cached, err := c.redisClient.Get(ctx, languagesCacheKey).Result(); err == nil {
			var codes []string
			if err := json.Unmarshal([]byte(cached), &codes); err == nil {
				return codes, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/languages", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrTranslationUnavailable, resp.StatusCode)
	}

	var entries []languageEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	slices.Sort(codes)

	if c.redisClient != nil {
		if data, err := json.Marshal(codes); err == nil {
			c.redisClient.Set(ctx, languagesCacheKey, data, c.languageTTL)
		}
	}
	return codes, nil
}

// acquire takes a semaphore slot and a rate limiter token. Callers past the
// concurrency cap queue here.
func (c *Client) acquire(ctx context.Context, limitKey string) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.limiter != nil && c.qps > 0 {
		if err := c.limiter.Wait(ctx, limitKey, c.qps, time.Second); err != nil {
			<-c.sem
			return err
		}
	}
	return nil
}

func (c *Client) release() {
	<-c.sem
}
