// Package store defines the job record store contract and the tabular row layout shared by its backends.
package store

import (
	"context"
	"errors"

	"github.com/zgt/job-scout/internal/jobs"
)

var (
	// ErrStoreRead is returned when the backing store cannot be read.
	ErrStoreRead = errors.New("store read failed")
	// ErrStoreWrite is returned when a batch could not be written.
	ErrStoreWrite = errors.New("store write failed")
	// ErrRecordNotFound is returned when no row matches a job identity.
	ErrRecordNotFound = errors.New("job record not found")
)

// Store persists processed jobs.
type Store interface {
	// ReadAll returns every stored job in row order. An empty store yields an empty slice.
	ReadAll(ctx context.Context) ([]jobs.ProcessedJob, error)
	// Append writes all jobs in one batch. Nothing is written when the batch fails.
	Append(ctx context.Context, items []jobs.ProcessedJob) error
	// EnsureHeaders writes the header row when the store is empty.
	EnsureHeaders(ctx context.Context) error
	// UpdateStatus rewrites the status of the row matching id.
	UpdateStatus(ctx context.Context, id jobs.Identity, status jobs.Status) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// FindRow returns the zero-based index of the first job matching id, or -1.
func FindRow(items []jobs.ProcessedJob, id jobs.Identity) int {
	for i, job := range items {
		if job.Matches(id) {
			return i
		}
	}
	return -1
}
