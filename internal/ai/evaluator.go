package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/logger"
	"github.com/zgt/job-scout/internal/utils"
)

var (
	//go:embed prompt.md
	promptTemplate string
	//go:embed system.md
	systemPrompt string
	//go:embed profile.md
	defaultProfile string
)

const defaultMaxLogLength = 200

// JobEvaluator turns a raw job into a prompt, sends it through a Completer and parses the verdict.
type JobEvaluator struct {
	completer Completer
	profile   string
	logger    *zap.Logger
	maxLogLen int
}

func NewJobEvaluator(completer Completer, profile string, log *zap.Logger, maxLogLength int) *JobEvaluator {
	if strings.TrimSpace(profile) == "" {
		profile = defaultProfile
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &JobEvaluator{
		completer: completer,
		profile:   strings.TrimSpace(profile),
		logger:    logger.WithAI(log, completer.Provider(), completer.Model()),
		maxLogLen: maxLogLength,
	}
}

// LoadProfile reads a custom profile document. An empty path selects the built-in profile.
func LoadProfile(path string) (string, error) {
	if path = strings.TrimSpace(path); path == "" {
		return defaultProfile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read profile %q: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("profile %q is empty", path)
	}
	return string(data), nil
}

// Ping checks the model backend without evaluating anything.
func (e *JobEvaluator) Ping(ctx context.Context) error {
	if err := e.completer.Ping(ctx); err != nil {
		return fmt.Errorf("%s model %s: %w", e.completer.Provider(), e.completer.Model(), err)
	}
	return nil
}

func (e *JobEvaluator) Evaluate(ctx context.Context, raw jobs.RawJob) (*jobs.Evaluation, error) {
	prompt, err := BuildPrompt(e.profile, raw)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("evaluation request",
		zap.String("title", raw.Title),
		zap.String("company", raw.CompanyName),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	reply, err := e.completer.Complete(ctx, SystemPrompt(), prompt)
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", e.completer.Provider(), err)
	}

	e.logger.Debug("evaluation response",
		zap.String("title", raw.Title),
		zap.Int("response_length", utf8.RuneCountInString(reply)),
		zap.String("response_preview", utils.TruncateForLog(reply, e.maxLogLen)),
	)

	return ParseEvaluation(reply)
}

// SystemPrompt returns the fixed instruction message sent with every evaluation.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

// BuildPrompt renders the user message for one job.
func BuildPrompt(profile string, raw jobs.RawJob) (string, error) {
	jobJSON, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{PROFILE}}", strings.TrimSpace(profile))
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", string(jobJSON))
	return strings.TrimSpace(prompt), nil
}
