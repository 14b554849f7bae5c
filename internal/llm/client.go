// Package llm talks to an OpenAI-compatible chat endpoint. It backs the
// optional assist features: picking target files for pathless patches and
// regenerating a diff that failed to apply.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableKeepAlives: true, // some local servers mishandle reused connections
			},
		},
	}
}

// isRetryableError returns true if the error or status code should trigger a retry
func isRetryableError(statusCode int, err error) bool {
	// Network/connection errors are retryable
	if err != nil {
		return true
	}
	// 429 = rate limited, 5xx = server errors
	return statusCode == 429 || statusCode >= 500
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Retry configuration
	const maxRetries = 4
	baseDelay := 1 * time.Second
	maxDelay := 16 * time.Second

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1)) // 1s, 2s, 4s, 8s
			if delay > maxDelay {
				delay = maxDelay
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		// A fresh request each attempt; the body reader cannot be reused
		httpReq, err := http.NewRequestWithContext(
			ctx,
			"POST",
			c.baseURL+"/chat/completions",
			bytes.NewReader(body),
		)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("execute request: %w", err)
			if isRetryableError(0, err) && attempt < maxRetries {
				continue
			}
			return nil, lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if attempt < maxRetries {
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("API error %d: %s", resp.StatusCode, respBody)
			if isRetryableError(resp.StatusCode, nil) && attempt < maxRetries {
				continue
			}
			return nil, lastErr
		}

		var chatResp ChatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			preview := string(respBody)
			if len(preview) > 500 {
				preview = preview[:500] + "..."
			}
			return nil, fmt.Errorf("decode response: %w (body preview: %s)", err, preview)
		}

		return &chatResp, nil
	}

	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
