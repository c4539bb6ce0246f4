package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured field keys shared across packages.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldRunID    = "run_id"
	FieldStage    = "stage"
)

// Field returns a trimmed string field, or a skipped field when key or value is blank.
func Field(key, value string) zap.Field {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		return zap.Skip()
	}
	return zap.String(key, value)
}

// AIFields describes the evaluator backend. Blank values are left out.
func AIFields(provider, model string) []zap.Field {
	return compact(Field(FieldProvider, provider), Field(FieldModel, model))
}

// WithAI attaches the evaluator provider and model to log. A nil log becomes a no-op logger.
func WithAI(log *zap.Logger, provider, model string) *zap.Logger {
	return with(log, AIFields(provider, model))
}

// WithRun attaches the pipeline run id to log.
func WithRun(log *zap.Logger, runID string) *zap.Logger {
	return with(log, compact(Field(FieldRunID, runID)))
}

// Stage returns the stage field.
func Stage(stage string) zap.Field {
	return zap.String(FieldStage, stage)
}

func with(log *zap.Logger, fields []zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

func compact(fields ...zap.Field) []zap.Field {
	out := fields[:0]
	for _, f := range fields {
		if f.Type != zapcore.SkipType {
			out = append(out, f)
		}
	}
	return out
}
