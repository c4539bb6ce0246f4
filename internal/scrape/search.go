package scrape

// DefaultSearchURL is used when no search URLs are configured.
const DefaultSearchURL = "https://www.linkedin.com/jobs/search/?keywords=golang%20developer&f_WT=2&sortBy=DD"

// SearchConfig is the actor input.
type SearchConfig struct {
	Count         int      `json:"count"`
	CountryCode   int      `json:"countryCode,omitempty"`
	ScrapeCompany bool     `json:"scrapeCompany"`
	URLs          []string `json:"urls"`
}

// SearchDefaults holds the configured part of every search.
type SearchDefaults struct {
	URLs          []string `mapstructure:"urls"`
	CountryCode   int      `mapstructure:"country-code"`
	ScrapeCompany bool     `mapstructure:"scrape-company"`
}

// DefaultSearch builds the search for one run, limited to maxJobs postings.
func DefaultSearch(maxJobs int, defaults SearchDefaults) SearchConfig {
	urls := make([]string, 0, len(defaults.URLs))
	for _, u := range defaults.URLs {
		if u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		urls = []string{DefaultSearchURL}
	}

	return SearchConfig{
		Count:         maxJobs,
		CountryCode:   defaults.CountryCode,
		ScrapeCompany: defaults.ScrapeCompany,
		URLs:          urls,
	}
}

const rawJobSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "companyName", "location"],
  "properties": {
    "title":          {"type": "string", "minLength": 1},
    "companyName":    {"type": "string", "minLength": 1},
    "location":       {"type": "string"},
    "companyWebsite": {"type": ["string", "null"]},
    "applyUrl":       {"type": ["string", "null"]},
    "description":    {"type": ["string", "null"]},
    "postedDate":     {"type": ["string", "null"]}
  }
}`
