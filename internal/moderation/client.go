// Package moderation classifies user text before it is published.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable means the classifier could not produce a verdict. It is never a content rejection.
var ErrUnavailable = errors.New("moderation service unavailable")

// Classifier returns one flagged verdict per input, in order.
type Classifier interface {
	Classify(ctx context.Context, inputs ...string) ([]bool, error)
}

type request struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type result struct {
	Flagged bool `json:"flagged"`
}

type reply struct {
	Results []result `json:"results"`
}

// Client calls an OpenAI-compatible moderations endpoint.
type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a moderation client. timeout <= 0 means 10 seconds.
func NewClient(url, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Classify sends all inputs in one request.
func (c *Client) Classify(ctx context.Context, inputs ...string) ([]bool, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(request{Input: inputs, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal moderation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("moderation request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("moderation upstream error", zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
		return nil, fmt.Errorf("%w: upstream status %d", ErrUnavailable, resp.StatusCode)
	}

	var out reply
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if len(out.Results) != len(inputs) {
		c.logger.Error("unexpected moderation response", zap.Int("results", len(out.Results)), zap.Int("inputs", len(inputs)))
		return nil, fmt.Errorf("%w: got %d results for %d inputs", ErrUnavailable, len(out.Results), len(inputs))
	}

	verdicts := make([]bool, len(out.Results))
	for i, r := range out.Results {
		verdicts[i] = r.Flagged
	}
	return verdicts, nil
}

// Permissive never flags anything. Used when no API key is configured.
type Permissive struct{}

// Classify returns false for every input.
func (Permissive) Classify(_ context.Context, inputs ...string) ([]bool, error) {
	return make([]bool, len(inputs)), nil
}
