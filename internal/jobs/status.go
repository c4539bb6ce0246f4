package jobs

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the workflow state of a stored job.
type Status string

const (
	StatusToReview    Status = "To Review"
	StatusApplied     Status = "Applied"
	StatusInterview   Status = "Interview"
	StatusRejected    Status = "Rejected"
	StatusNotRelevant Status = "Not Relevant"
)

// Statuses lists every known workflow state in display order.
var Statuses = []Status{
	StatusToReview,
	StatusApplied,
	StatusInterview,
	StatusRejected,
	StatusNotRelevant,
}

// ParseStatus normalizes user input ("not relevant", " APPLIED ") into a known Status.
func ParseStatus(s string) (Status, error) {
	normalized := strings.Join(strings.Fields(s), " ")
	if normalized == "" {
		return "", fmt.Errorf("status is required")
	}

	st := Status(cases.Title(language.English).String(strings.ToLower(normalized)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// StatusNames returns the statuses as plain strings, e.g. for prompts.
func StatusNames() []string {
	names := make([]string, 0, len(Statuses))
	for _, st := range Statuses {
		names = append(names, string(st))
	}
	return names
}

// FormatRating renders a rating the way it is stored in tabular backends.
func FormatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// ParseRating reads a stored rating back. Empty cells are zero.
func ParseRating(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rating %q: %w", s, err)
	}
	return r, nil
}
