package assist

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Config carries the endpoints and limits for the collaborator services.
type Config struct {
	TranscribeURL string
	GenerateURL   string
	ReviewURL     string
	Timeout       time.Duration
	MaxRetries    int
}

// Client talks to the three collaborator services.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates the configuration and builds a client. All three
// endpoints must be set.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TranscribeURL == "" || cfg.GenerateURL == "" || cfg.ReviewURL == "" {
		return nil, fmt.Errorf("assist: all service endpoints must be configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 2
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// TranscribeRequest is the wire body for the transcription service.
type TranscribeRequest struct {
	Audio  string `json:"audio"` // base64-encoded samples
	Format string `json:"format,omitempty"`
}

// TranscribeResponse is the transcription service reply.
type TranscribeResponse struct {
	Transcript string `json:"transcript"`
}

// GenerateRequest is the wire body for the code generation service.
type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language,omitempty"`
}

// GenerateResponse is the code generation service reply.
type GenerateResponse struct {
	Code string `json:"code"`
}

// ReviewRequest is the wire body for the code review service.
type ReviewRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// ReviewCategory is one scored aspect of a review.
type ReviewCategory struct {
	Category string   `json:"category"`
	Score    int      `json:"score"`
	Comments []string `json:"comments,omitempty"`
}

// ReviewResponse is the review service reply: an overall score plus
// per-category assessments (code_quality, security, performance, style,
// architecture).
type ReviewResponse struct {
	Summary      string           `json:"summary"`
	OverallScore int              `json:"overall_score"`
	Categories   []ReviewCategory `json:"categories"`
}

// Transcribe sends an audio segment for transcription. Transient failures
// are retried with exponential backoff since this path carries the live
// voice loop.
func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	req := TranscribeRequest{
		Audio:  base64.StdEncoding.EncodeToString(audio),
		Format: format,
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			log.Debug().
				Str("module", "assist").
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying transcription")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		var resp TranscribeResponse
		err := c.post(ctx, c.cfg.TranscribeURL, req, &resp)
		if err == nil {
			return resp.Transcript, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return "", fmt.Errorf("transcription failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

// GenerateCode asks the code generation service to turn a prompt into source.
func (c *Client) GenerateCode(ctx context.Context, prompt, language string) (string, error) {
	var resp GenerateResponse
	if err := c.post(ctx, c.cfg.GenerateURL, GenerateRequest{Prompt: prompt, Language: language}, &resp); err != nil {
		return "", fmt.Errorf("code generation failed: %w", err)
	}
	return resp.Code, nil
}

// Review submits source for a multi-category scored assessment.
func (c *Client) Review(ctx context.Context, code, language string) (*ReviewResponse, error) {
	var resp ReviewResponse
	if err := c.post(ctx, c.cfg.ReviewURL, ReviewRequest{Code: code, Language: language}, &resp); err != nil {
		return nil, fmt.Errorf("code review failed: %w", err)
	}
	return &resp, nil
}

// statusError reports a non-2xx reply so retry logic can distinguish
// server-side failures from bad requests.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.body)
}

func (c *Client) post(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	// Transport-level failures (timeouts, resets) are worth a retry;
	// anything we could not even send did not reach the service.
	return true
}
