package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/globot/syncbot/config"
	"github.com/globot/syncbot/utils/ratelimit"
)

var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Labels is the fixed label set of the toxicity model.
var Labels = []string{"toxic", "severe_toxic", "obscene", "threat", "insult", "identity_hate"}

// Classifier scores a text against the toxicity label set.
type Classifier interface {
	Classify(ctx context.Context, text string) (map[string]float64, error)
}

// Client is the HTTP adapter for the classification service. Outstanding
// calls are capped; extra callers queue.
type Client struct {
	baseURL    string
	httpClient *http.Client

	sem     chan struct{}
	limiter ratelimit.Limiter
	qps     int
}

func NewClient(cfg *config.ModerationConfig, limiter ratelimit.Limiter, qps int) *Client {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 4
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		sem:        make(chan struct{}, maxConc),
		limiter:    limiter,
		qps:        qps,
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Labels map[string]float64 `json:"labels"`
}

func (c *Client) Classify(ctx context.Context, text string) (map[string]float64, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, ctx.Err())
	}
	defer func() { <-c.sem }()

	if c.limiter != nil && c.qps > 0 {
		if err := c.limiter.Wait(ctx, "classify", c.qps, time.Second); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
		}
	}

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrClassifierUnavailable, resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return out.Labels, nil
}
