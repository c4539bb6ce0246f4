// Package ai classifies scraped jobs against the candidate profile with a language model.
package ai

import (
	"context"

	"github.com/zgt/job-scout/internal/jobs"
)

// Evaluator judges a single raw job.
type Evaluator interface {
	Evaluate(ctx context.Context, raw jobs.RawJob) (*jobs.Evaluation, error)
}

// Completer sends a system and a user message to a model and returns its text reply.
// Ping checks that the backend accepts the credentials and knows the model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Ping(ctx context.Context) error
	Provider() string
	Model() string
}
