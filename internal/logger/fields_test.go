package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestField(t *testing.T) {
	f := Field("  ai_provider ", "  gemini  ")
	if f.Key != "ai_provider" || f.String != "gemini" {
		t.Fatalf("unexpected field: %+v", f)
	}

	for _, blank := range []zap.Field{Field("key", "   "), Field(" ", "value")} {
		if blank.Type != zapcore.SkipType {
			t.Fatalf("expected skipped field, got %+v", blank)
		}
	}
}

func TestAIFields(t *testing.T) {
	fields := AIFields("  gemini  ", "gemini-2.5-flash")
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Key != FieldProvider || fields[0].String != "gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
	if fields[1].Key != FieldModel || fields[1].String != "gemini-2.5-flash" {
		t.Fatalf("unexpected model field: %+v", fields[1])
	}

	if only := AIFields("openai", ""); len(only) != 1 || only[0].Key != FieldProvider {
		t.Fatalf("expected provider only, got %+v", only)
	}
	if empty := AIFields("", ""); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithRunAndStage(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithRun(WithAI(zap.New(core), "openai", "gpt-4o-mini"), "run-1").Info("evaluating", Stage("evaluating"))

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	want := map[string]string{
		FieldProvider: "openai",
		FieldModel:    "gpt-4o-mini",
		FieldRunID:    "run-1",
		FieldStage:    "evaluating",
	}
	for k, v := range want {
		if ctx[k] != v {
			t.Fatalf("expected %s=%q, got %v", k, v, ctx[k])
		}
	}
}

func TestNilLogger(t *testing.T) {
	if got := WithRun(nil, ""); got == nil {
		t.Fatal("expected no-op logger")
	}
	WithAI(nil, "gemini", "m").Info("no panic")
}
