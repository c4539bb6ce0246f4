package jobs

import (
	"encoding/json"
	"os"
	"strings"
)

// RawJob is a single posting as returned by the scraping actor.
type RawJob struct {
	Title          string `json:"title" mapstructure:"title"`
	CompanyName    string `json:"companyName" mapstructure:"companyName"`
	Location       string `json:"location" mapstructure:"location"`
	CompanyWebsite string `json:"companyWebsite,omitempty" mapstructure:"companyWebsite"`
	ApplyURL       string `json:"applyUrl,omitempty" mapstructure:"applyUrl"`
	Description    string `json:"description,omitempty" mapstructure:"description"`
	PostedDate     string `json:"postedDate,omitempty" mapstructure:"postedDate"`
}

// Evaluation is the evaluator's judgment of one RawJob.
// Fit is already normalized from the wire "verdict" string.
type Evaluation struct {
	Fit         bool
	Reason      string
	CompanyName string
	Rating      int
	Skills      string
	Raw         string
}

// ProcessedJob is a persisted job that passed the fit verdict.
type ProcessedJob struct {
	Status         Status  `json:"status"`
	Priority       string  `json:"priority,omitempty"`
	Interest       string  `json:"interest,omitempty"`
	Role           string  `json:"role"`
	Company        string  `json:"company"`
	Location       string  `json:"location"`
	Salary         string  `json:"salary,omitempty"`
	CompanyWebsite string  `json:"companyWebsite"`
	JobLink        string  `json:"jobLink"`
	Skills         string  `json:"skills"`
	ReasonForMatch string  `json:"reasonForMatch"`
	Rating         float64 `json:"rating"`
}

// Identity locates a stored job for status updates.
type Identity struct {
	Company string `json:"company"`
	Role    string `json:"role"`
	JobLink string `json:"jobLink"`
}

const defaultTracking = "1"

// NewProcessedJob converts a raw job and its positive evaluation into a stored record.
func NewProcessedJob(raw RawJob, ev Evaluation) ProcessedJob {
	company := strings.TrimSpace(raw.CompanyName)
	if company == "" {
		company = strings.TrimSpace(ev.CompanyName)
	}

	return ProcessedJob{
		Status:         StatusToReview,
		Priority:       defaultTracking,
		Interest:       defaultTracking,
		Role:           strings.TrimSpace(raw.Title),
		Company:        company,
		Location:       strings.TrimSpace(raw.Location),
		CompanyWebsite: strings.TrimSpace(raw.CompanyWebsite),
		JobLink:        LinkKey(raw.ApplyURL),
		Skills:         strings.TrimSpace(ev.Skills),
		ReasonForMatch: strings.TrimSpace(ev.Reason),
		Rating:         float64(ev.Rating),
	}
}

// Identity returns the triple used to locate the job in a store.
func (j ProcessedJob) Identity() Identity {
	return Identity{Company: j.Company, Role: j.Role, JobLink: j.JobLink}
}

// Matches reports whether the job is the one referenced by id.
func (j ProcessedJob) Matches(id Identity) bool {
	return j.Company == id.Company && j.Role == id.Role && j.JobLink == id.JobLink
}

// LinkKey normalizes a posting link into the dedup key stored as JobLink.
func LinkKey(link string) string {
	return strings.TrimSpace(link)
}

// IsDuplicate reports whether some job in existing carries link as its dedup key.
func IsDuplicate(existing []ProcessedJob, link string) bool {
	key := LinkKey(link)
	if key == "" {
		return false
	}
	for _, job := range existing {
		if LinkKey(job.JobLink) == key {
			return true
		}
	}
	return false
}

// LinkSet indexes dedup keys for lookups during a run.
type LinkSet map[string]struct{}

// NewLinkSet builds a set from the job links of existing records. Empty links are ignored.
func NewLinkSet(existing []ProcessedJob) LinkSet {
	set := make(LinkSet, len(existing))
	for _, job := range existing {
		set.Add(job.JobLink)
	}
	return set
}

// Contains reports whether link was seen. Postings without a link are never duplicates.
func (s LinkSet) Contains(link string) bool {
	key := LinkKey(link)
	if key == "" {
		return false
	}
	_, ok := s[key]
	return ok
}

// Add records link. Empty links are ignored.
func (s LinkSet) Add(link string) {
	if key := LinkKey(link); key != "" {
		s[key] = struct{}{}
	}
}

// DumpToTmpFile writes the jobs as indented JSON into a temporary file and returns its name.
func DumpToTmpFile(items []ProcessedJob) (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByCompany groups jobs by company for a compact overview.
func ReportByCompany(items []ProcessedJob) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range items {
		report[job.Company] = append(report[job.Company], map[string]string{
			"role":     job.Role,
			"location": job.Location,
			"link":     job.JobLink,
			"status":   string(job.Status),
			"rating":   FormatRating(job.Rating),
		})
	}
	return report
}
