package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/store"
)

func TestCopyRowsFollowsColumnOrder(t *testing.T) {
	rows := copyRows([]jobs.ProcessedJob{{
		Role:     "Go Developer",
		Company:  "Acme",
		JobLink:  "https://acme.example/1",
		Priority: "1",
		Interest: "1",
		Rating:   8,
	}})

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if len(rows[0]) != len(columns) {
		t.Fatalf("expected %d values, got %d", len(columns), len(rows[0]))
	}
	if rows[0][0] != "To Review" {
		t.Fatalf("expected default status, got %v", rows[0][0])
	}
	if rows[0][8] != "https://acme.example/1" {
		t.Fatalf("expected job_link in position 8, got %v", rows[0][8])
	}
	if rows[0][11] != float64(8) {
		t.Fatalf("expected numeric rating, got %#v", rows[0][11])
	}
}

// TestStoreRoundTrip runs against a real database when JOB_SCOUT_TEST_DATABASE_URL is set.
func TestStoreRoundTrip(t *testing.T) {
	url := os.Getenv("JOB_SCOUT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("JOB_SCOUT_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	s := New(pool, zap.NewNop())
	if err := s.EnsureHeaders(ctx); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE job_records"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	want := []jobs.ProcessedJob{
		{Status: jobs.StatusToReview, Priority: "1", Interest: "1", Role: "Dev", Company: "Acme", Location: "Remote",
			CompanyWebsite: "https://acme.example", JobLink: "https://acme.example/1", Skills: "Go", ReasonForMatch: "fit", Rating: 8},
		{Status: jobs.StatusToReview, Priority: "1", Interest: "1", Role: "SRE", Company: "Globex", Location: "Paris",
			JobLink: "https://globex.example/2", Rating: 9},
	}
	if err := s.Append(ctx, want); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("job %d mismatch:\n got  %+v\n want %+v", i, got[i], want[i])
		}
	}

	if err := s.UpdateStatus(ctx, want[0].Identity(), jobs.StatusApplied); err != nil {
		t.Fatalf("update status: %v", err)
	}
	err = s.UpdateStatus(ctx, jobs.Identity{Company: "none", Role: "none", JobLink: "none"}, jobs.StatusApplied)
	if !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
