// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. The ranking
// service treats the model as opaque: a text prompt goes out, a text response
// comes back.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a chat client from the ranker configuration. Call
// deadlines come from the request context, not the transport.
func NewClient(cfg config.RankerConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// normalizeBaseURL strips trailing slashes and a trailing "/chat/completions"
// suffix so the path is never doubled when the client appends it.
func normalizeBaseURL(raw string) string {
	s := strings.TrimRight(raw, "/")
	return strings.TrimSuffix(s, "/chat/completions")
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends a system and user prompt and returns the assistant's text.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ranker: marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ranker: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ranker: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ranker: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ranker: HTTP %d: %s", resp.StatusCode, snippet(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("ranker: unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("ranker: API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("ranker: no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

func snippet(body []byte) string {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
