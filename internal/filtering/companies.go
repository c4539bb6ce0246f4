package filtering

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"github.com/zgt/job-scout/internal/jobs"
)

type companiesFilter struct {
	companies map[string]struct{}
}

// NewExcludedCompanies creates a filter that removes jobs posted by the given companies.
// Names are compared case-insensitively.
func NewExcludedCompanies(companies []string) Filter {
	f := &companiesFilter{companies: make(map[string]struct{}, len(companies))}
	for _, c := range companies {
		if c = fold(c); c != "" {
			f.companies[c] = struct{}{}
		}
	}
	return f
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) IsEnabled() bool { return len(f.companies) > 0 }

func (f *companiesFilter) Apply(_ context.Context, items []jobs.RawJob) ([]jobs.RawJob, error) {
	return keep(items, func(job jobs.RawJob) bool {
		_, excluded := f.companies[fold(job.CompanyName)]
		return excluded
	}), nil
}

type keywordsFilter struct {
	keywords []string
}

// NewExcludedKeywords creates a filter that removes jobs whose title contains any of the keywords.
func NewExcludedKeywords(keywords []string) Filter {
	f := &keywordsFilter{}
	for _, k := range keywords {
		if k = fold(k); k != "" {
			f.keywords = append(f.keywords, k)
		}
	}
	return f
}

func (f *keywordsFilter) Name() string { return "keywords" }

func (f *keywordsFilter) IsEnabled() bool { return len(f.keywords) > 0 }

func (f *keywordsFilter) Apply(_ context.Context, items []jobs.RawJob) ([]jobs.RawJob, error) {
	return keep(items, func(job jobs.RawJob) bool {
		title := fold(job.Title)
		for _, k := range f.keywords {
			if strings.Contains(title, k) {
				return true
			}
		}
		return false
	}), nil
}

func fold(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
