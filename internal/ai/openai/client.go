// Package openai talks to any service exposing the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/spigell/resume-evaluator/internal/ai"
)

const (
	Provider       = "openai"
	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com/v1"

	completionsPath = "/chat/completions"
)

// APIError is a non-2xx response from the completions endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat completions returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat completions returned status %d: %s", e.StatusCode, e.Message)
}

type Transport struct {
	http *resty.Client
}

var _ ai.Transport = (*Transport)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float32         `json:"temperature"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// New creates a Transport. An empty baseURL selects the public OpenAI endpoint.
func New(apiKey, baseURL string, timeout time.Duration) (*Transport, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Transport{http: client}, nil
}

func (t *Transport) Provider() string { return Provider }

func (t *Transport) Complete(ctx context.Context, req ai.Request) (string, error) {
	if t == nil || t.http == nil {
		return "", errors.New("openai transport is not initialized")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultModel
	}

	body := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: msg.Role, Content: msg.Content})
	}
	if req.JSONObject {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(completionsPath)
	if err != nil {
		return "", fmt.Errorf("post chat completions: %w", err)
	}

	if resp.IsError() {
		return "", &APIError{
			StatusCode: resp.StatusCode(),
			Message:    gjson.GetBytes(resp.Body(), "error.message").String(),
		}
	}

	content := gjson.GetBytes(resp.Body(), "choices.0.message.content")
	if !content.Exists() {
		return "", nil
	}

	return strings.TrimSpace(content.String()), nil
}
