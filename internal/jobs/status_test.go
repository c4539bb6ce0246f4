package jobs

import "testing"

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{input: "To Review", want: StatusToReview},
		{input: "to review", want: StatusToReview},
		{input: "  APPLIED ", want: StatusApplied},
		{input: "interview", want: StatusInterview},
		{input: "not   relevant", want: StatusNotRelevant},
		{input: "Rejected", want: StatusRejected},
		{input: "", wantErr: true},
		{input: "hired", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatus(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRatingRoundTrip(t *testing.T) {
	for _, r := range []float64{0, 1, 8, 9.5, 10} {
		got, err := ParseRating(FormatRating(r))
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", r, err)
		}
		if got != r {
			t.Fatalf("rating round trip: got %v, want %v", got, r)
		}
	}

	if _, err := ParseRating("eight"); err == nil {
		t.Fatal("expected error for non-numeric rating")
	}

	if got, err := ParseRating("  "); err != nil || got != 0 {
		t.Fatalf("expected empty rating to be zero, got %v, %v", got, err)
	}
}

func TestStageTerminal(t *testing.T) {
	for _, s := range []Stage{StageScraping, StageEvaluating, StageSaving} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
	for _, s := range []Stage{StageCompleted, StageError} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
