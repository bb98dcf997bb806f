// Package remote performs the upgrade request against a chat-completions
// endpoint with a bounded, fixed-delay retry policy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ouro-sh/ouro/internal/log"
)

const maxResponseBytes = 8 << 20

type Config struct {
	BaseURL     string
	Path        string
	Model       string
	APIKey      string
	Attempts    int
	RetryDelay  time.Duration
	Timeout     time.Duration // per-attempt deadline
	Temperature float64
}

// Request is one upgrade request: fixed rewrite instructions plus the user
// payload embedding the current program text.
type Request struct {
	System string
	User   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *log.Logger

	// sleep is replaced in tests to count inter-attempt delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "/v1/chat/completions"
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 0},
		log:        logger,
		sleep:      sleepCtx,
	}
}

// Complete sends the upgrade request and returns the generated text at
// choices[0].message.content. Transport and HTTP failures are retried up to
// cfg.Attempts with a fixed delay; shape failures are terminal.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	raw, err := c.callWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	return ExtractContent(raw)
}

// callWithRetry retries unconditionally on any transport or HTTP failure.
// No 4xx/5xx distinction is made; that is a deliberate simplification.
func (c *Client) callWithRetry(ctx context.Context, req Request) ([]byte, error) {
	var last error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		raw, err := c.call(ctx, req)
		if err == nil {
			return raw, nil
		}
		last = err
		if attempt < c.cfg.Attempts {
			c.log.Warn("remote call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("budget", c.cfg.Attempts),
				zap.Duration("delay", c.cfg.RetryDelay),
				zap.Error(err))
			if serr := c.sleep(ctx, c.cfg.RetryDelay); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, &ExhaustedError{Attempts: c.cfg.Attempts, Last: last}
}

func (c *Client) call(ctx context.Context, req Request) ([]byte, error) {
	rctx, cancel := c.withAttemptDeadline(ctx)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": c.cfg.Temperature,
	})
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(rctx, http.MethodPost, c.cfg.BaseURL+c.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		diag := strings.TrimSpace(string(raw))
		if readErr != nil || diag == "" {
			diag = "(response body unavailable)"
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: diag}
	}
	if readErr != nil {
		return nil, &TransportError{Err: readErr}
	}
	return raw, nil
}

func (c *Client) withAttemptDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
