// Package llm is a client for OpenAI-compatible chat-completions APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/sethvargo/go-retry"
)

const systemPrompt = "You are a writing assistant for a technical blog. Answer in Markdown."

type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// BaseDelay is the first backoff step; it doubles on every retry.
	BaseDelay time.Duration
}

type Client struct {
	opts Options
	http *http.Client
	log  logging.Logger
}

func New(opts Options, log logging.Logger) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  log.With("module", "llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateText sends prompt and returns the first completion. Transport
// errors, 429 and 5xx answers are retried with exponential backoff; all
// failures match common.ErrorUpstream.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	backoff := retry.WithMaxRetries(uint64(c.opts.MaxRetries), retry.NewExponential(c.opts.BaseDelay))

	var text string
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out, err := c.complete(ctx, body)
		if err != nil {
			c.log.Warn(ctx, "completion failed", "attempt", attempt, "error", err)
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorUpstream) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", common.ErrorUpstream, err)
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", retry.RetryableError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", retry.RetryableError(err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: llm api answered %d: %s", common.ErrorUpstream, resp.StatusCode, errorMessage(raw))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", retry.RetryableError(statusErr)
		}
		return "", statusErr
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode llm response: %v", common.ErrorUpstream, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: llm returned no content", common.ErrorUpstream)
	}
	return out.Choices[0].Message.Content, nil
}

func errorMessage(raw []byte) string {
	var out chatResponse
	if json.Unmarshal(raw, &out) == nil && out.Error != nil {
		return out.Error.Message
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
