package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/zgt/job-scout/internal/ai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue []fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func (f *fakeChatCreator) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(_ context.Context, model string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

type fakeModels struct {
	err       error
	requested []string
}

func (f *fakeModels) Get(_ context.Context, model string, _ *genai.GetModelConfig) (*genai.Model, error) {
	f.requested = append(f.requested, model)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Model{Name: "models/" + model}, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(nil, genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"})
	chats.enqueue(textResponse(`{"verdict":"true"}`), nil)

	g := newGenerator(chats, &fakeModels{}, Config{Model: "gemini-test", Retry: ai.RetryPolicy{MaxAttempts: 2}}, zap.NewNop())

	output, err := g.Complete(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != `{"verdict":"true"}` {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}

	for _, call := range chats.calls {
		if call.model != "gemini-test" {
			t.Fatalf("unexpected model %q", call.model)
		}
		if call.config.SystemInstruction == nil || call.config.SystemInstruction.Parts[0].Text != "system" {
			t.Fatalf("expected system instruction to be set")
		}
		if call.config.ResponseMIMEType != "application/json" {
			t.Fatalf("expected JSON response type, got %q", call.config.ResponseMIMEType)
		}
		if call.config.Temperature == nil || *call.config.Temperature != defaultTemperature {
			t.Fatalf("expected default temperature")
		}
		if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.chat.messages)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	chats := &fakeChatCreator{}
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue(nil, tempErr)
	chats.enqueue(nil, tempErr)

	g := newGenerator(chats, &fakeModels{}, Config{Retry: ai.RetryPolicy{MaxAttempts: 2}}, nil)

	if _, err := g.Complete(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newGenerator(chats, &fakeModels{}, Config{Retry: ai.RetryPolicy{MaxAttempts: 3, MaxDelay: 10 * time.Second}}, nil)

	if _, err := g.Complete(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected quota error")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newGenerator(chats, &fakeModels{}, Config{Retry: ai.RetryPolicy{MaxAttempts: 3}}, nil)

	if _, err := g.Complete(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(chats.calls))
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(&genai.GenerateContentResponse{}, nil)

	g := newGenerator(chats, &fakeModels{}, Config{}, nil)
	if _, err := g.Complete(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error for empty response")
	}
	if chats.calls[0].config.SystemInstruction != nil {
		t.Fatal("expected no system instruction for empty system prompt")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name string
		err  genai.APIError
		want time.Duration
	}{
		{
			name: "retry info detail",
			err: genai.APIError{Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "43s"},
			}},
			want: 43 * time.Second,
		},
		{name: "message", err: genai.APIError{Message: "Please retry in 1.5s."}, want: 1500 * time.Millisecond},
		{name: "unknown", err: genai.APIError{Message: "overloaded"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelay(tt.err); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestGeneratorDefaults(t *testing.T) {
	g := newGenerator(&fakeChatCreator{}, &fakeModels{}, Config{}, nil)
	if g.Model() != defaultModel || g.Provider() != "gemini" {
		t.Fatalf("unexpected defaults: %s %s", g.Provider(), g.Model())
	}
}

func TestGeneratorHonoursZeroTemperature(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(textResponse(`{"verdict":"false"}`), nil)
	zero := float32(0)

	g := newGenerator(chats, &fakeModels{}, Config{Temperature: &zero}, nil)
	if _, err := g.Complete(context.Background(), "", "job"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := chats.calls[0].config.Temperature; got == nil || *got != 0 {
		t.Fatalf("expected temperature 0, got %v", got)
	}
}

func TestGeneratorPing(t *testing.T) {
	models := &fakeModels{}
	g := newGenerator(&fakeChatCreator{}, models, Config{Model: "gemini-test"}, nil)

	if err := g.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models.requested) != 1 || models.requested[0] != "gemini-test" {
		t.Fatalf("unexpected model lookups: %v", models.requested)
	}

	models.err = genai.APIError{Code: http.StatusBadRequest, Message: "API key not valid"}
	if err := g.Ping(context.Background()); err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected key error, got %v", err)
	}
}
