// Package gemini implements ai.Completer on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/zgt/job-scout/internal/ai"
	"github.com/zgt/job-scout/internal/logger"
)

const (
	providerName       = "gemini"
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.2
	defaultTimeout     = 60 * time.Second
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9.]+)\s*s`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type modelGetter interface {
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// Config configures the Gemini backend. A nil Temperature selects the default.
type Config struct {
	APIKey      string
	Model       string
	Temperature *float32
	Timeout     time.Duration
	Retry       ai.RetryPolicy
}

// Generator sends one system instruction plus one user message per call.
type Generator struct {
	chats       chatCreator
	models      modelGetter
	model       string
	temperature float32
	timeout     time.Duration
	retry       ai.RetryPolicy
	logger      *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(genaiChats{chats: client.Chats}, client.Models, cfg, log), nil
}

func newGenerator(chats chatCreator, models modelGetter, cfg Config, log *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	temperature := float32(defaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Generator{
		chats:       chats,
		models:      models,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		retry:       cfg.Retry,
		logger:      logger.WithAI(log, providerName, model),
	}
}

func (g *Generator) Complete(ctx context.Context, system, user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	return ai.Retry(ctx, g.retry, g.logger, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		chat, err := g.chats.Create(ctx, g.model, config, nil)
		if err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}

		resp, err := chat.SendMessage(ctx, genai.Part{Text: user})
		if err != nil {
			return "", classify(err)
		}

		return responseText(resp)
	})
}

// Ping looks the configured model up, which fails on a bad key or an unknown model.
func (g *Generator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if _, err := g.models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("get model: %w", err)
	}
	return nil
}

func (g *Generator) Provider() string { return providerName }

func (g *Generator) Model() string { return g.model }

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("send message: %w", err)
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &ai.TemporaryError{Err: fmt.Errorf("send message: %w", err), RetryAfter: retryDelay(apiErr)}
	}
	return fmt.Errorf("send message: %w", err)
}

func retryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		kind, _ := detail["@type"].(string)
		if !strings.HasSuffix(kind, "RetryInfo") {
			continue
		}
		if raw, ok := detail["retryDelay"].(string); ok {
			if d, err := time.ParseDuration(raw); err == nil {
				return d
			}
		}
	}

	if m := retryAfterPattern.FindStringSubmatch(apiErr.Message); len(m) == 2 {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}
