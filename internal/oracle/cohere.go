package oracle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// CohereConfig configures the Cohere backend.
type CohereConfig struct {
	APIKey         string
	Models         Models
	TimeoutSeconds int
}

type chatFunc func(ctx context.Context, req *cohere.V2ChatRequest) (*cohere.V2ChatResponse, error)

// CohereClient implements Oracle with Cohere's v2 chat endpoint.
type CohereClient struct {
	models Models
	chat   chatFunc
}

// NewCohereClient returns a Cohere-backed oracle.
func NewCohereClient(cfg CohereConfig) (*CohereClient, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("cohere: api key required")
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(key),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &CohereClient{
		models: cfg.Models,
		chat: func(ctx context.Context, req *cohere.V2ChatRequest) (*cohere.V2ChatResponse, error) {
			return client.V2.Chat(ctx, req)
		},
	}, nil
}

// Invoke sends systemRole and prompt as one chat turn and returns the text answer.
func (c *CohereClient) Invoke(ctx context.Context, kind TaskKind, systemRole, prompt string) (string, error) {
	temperature := 0.0
	req := &cohere.V2ChatRequest{
		Model: c.models.For(kind),
		Messages: cohere.ChatMessages{
			{
				Role: "system",
				System: &cohere.SystemMessageV2{
					Content: &cohere.SystemMessageV2Content{String: strings.TrimSpace(systemRole) + " You must respond with JSON only."},
				},
			},
			{
				Role: "user",
				User: &cohere.UserMessageV2{
					Content: &cohere.UserMessageV2Content{String: strings.TrimSpace(prompt)},
				},
			},
		},
		Temperature: &temperature,
	}
	resp, err := c.chat(ctx, req)
	if err != nil {
		return "", &CallError{Kind: kind, Err: err}
	}
	text := responseText(resp)
	if text == "" {
		return "", &ResponseError{Kind: kind, Reason: "empty content"}
	}
	return text, nil
}

// HealthCheck verifies the API key and verification model.
func (c *CohereClient) HealthCheck(ctx context.Context) error {
	return ping(ctx, c)
}

func responseText(resp *cohere.V2ChatResponse) string {
	if resp == nil || resp.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, item := range resp.Message.Content {
		if item == nil || item.Text == nil {
			continue
		}
		b.WriteString(item.Text.Text)
	}
	return strings.TrimSpace(b.String())
}
