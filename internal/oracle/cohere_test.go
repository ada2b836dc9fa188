package oracle

import (
	"context"
	"errors"
	"testing"

	cohere "github.com/cohere-ai/cohere-go/v2"
)

func TestCohereInvoke(t *testing.T) {
	var got *cohere.V2ChatRequest
	c := &CohereClient{
		models: testModels(),
		chat: func(_ context.Context, req *cohere.V2ChatRequest) (*cohere.V2ChatResponse, error) {
			got = req
			return &cohere.V2ChatResponse{
				Message: &cohere.AssistantMessageResponse{
					Content: []*cohere.AssistantMessageResponseContentItem{
						{Text: &cohere.ChatTextContent{Text: `{"ok":true}`}},
					},
				},
			}, nil
		},
	}

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if got.Model != "verify-model" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].System == nil || got.Messages[1].User == nil {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestCohereInvoke_joinsTextContent(t *testing.T) {
	c := &CohereClient{
		models: testModels(),
		chat: func(context.Context, *cohere.V2ChatRequest) (*cohere.V2ChatResponse, error) {
			return &cohere.V2ChatResponse{
				Message: &cohere.AssistantMessageResponse{
					Content: []*cohere.AssistantMessageResponseContentItem{
						{Text: &cohere.ChatTextContent{Text: `{"is_match":`}},
						nil,
						{Text: &cohere.ChatTextContent{Text: `true}`}},
					},
				},
			}, nil
		},
	}
	out, err := c.Invoke(context.Background(), TaskVerifyMatch, RoleDetective, "p")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != `{"is_match":true}` {
		t.Errorf("Invoke = %q", out)
	}
}

func TestCohereInvoke_errors(t *testing.T) {
	failing := &CohereClient{
		models: testModels(),
		chat: func(context.Context, *cohere.V2ChatRequest) (*cohere.V2ChatResponse, error) {
			return nil, errors.New("503 service unavailable")
		},
	}
	_, err := failing.Invoke(context.Background(), TaskIndexSource, RoleArchivist, "p")
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Errorf("expected *CallError, got %v", err)
	}

	empty := &CohereClient{
		models: testModels(),
		chat: func(context.Context, *cohere.V2ChatRequest) (*cohere.V2ChatResponse, error) {
			return &cohere.V2ChatResponse{}, nil
		},
	}
	_, err = empty.Invoke(context.Background(), TaskIndexSource, RoleArchivist, "p")
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Errorf("expected *ResponseError, got %v", err)
	}
}

func TestNewCohereClient_requiresKey(t *testing.T) {
	if _, err := NewCohereClient(CohereConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
