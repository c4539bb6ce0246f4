package store

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
)

// Column is a zero-based positional column of the tabular layout.
type Column int

// The layout is the only place column positions are defined.
// Reading and writing both go through EncodeRow and DecodeRow.
const (
	ColStatus Column = iota
	ColPriority
	ColInterest
	ColRole
	ColCompany
	ColLocation
	ColSalary
	ColCompanyWebsite
	ColJobLink
	ColSkills
	ColReasonForMatch
	ColRating

	ColumnCount = int(ColRating) + 1
)

// Headers is the header row written into row 1.
var Headers = []string{
	ColStatus:         "Status",
	ColPriority:       "Priority",
	ColInterest:       "Interest",
	ColRole:           "Role",
	ColCompany:        "Company",
	ColLocation:       "Location",
	ColSalary:         "Salary",
	ColCompanyWebsite: "Company Website",
	ColJobLink:        "Job Link",
	ColSkills:         "Skills",
	ColReasonForMatch: "Reason For Match",
	ColRating:         "Rating",
}

// Letter returns the spreadsheet column letter, e.g. ColStatus -> "A".
func (c Column) Letter() string {
	return string(rune('A' + int(c)))
}

// LastColumn is the letter of the rightmost column of the layout.
var LastColumn = ColRating.Letter()

// EncodeRow renders a job into the positional row written to tabular backends.
func EncodeRow(job jobs.ProcessedJob) []string {
	status := job.Status
	if status == "" {
		status = jobs.StatusToReview
	}

	row := make([]string, ColumnCount)
	row[ColStatus] = string(status)
	row[ColPriority] = job.Priority
	row[ColInterest] = job.Interest
	row[ColRole] = job.Role
	row[ColCompany] = job.Company
	row[ColLocation] = job.Location
	row[ColSalary] = job.Salary
	row[ColCompanyWebsite] = job.CompanyWebsite
	row[ColJobLink] = job.JobLink
	row[ColSkills] = job.Skills
	row[ColReasonForMatch] = job.ReasonForMatch
	row[ColRating] = jobs.FormatRating(job.Rating)
	return row
}

// DecodeRow parses a stored row back into a job. Short rows are padded with empty cells,
// since tabular APIs usually drop trailing blanks.
// The job is always returned. A non-nil error names a cell that could not be parsed
// and was decoded as its zero value.
func DecodeRow(row []string) (jobs.ProcessedJob, error) {
	cells := make([]string, ColumnCount)
	copy(cells, row)

	rating, ratingErr := jobs.ParseRating(cells[ColRating])
	if ratingErr != nil {
		rating = 0
		ratingErr = fmt.Errorf("column %s: %w", ColRating.Letter(), ratingErr)
	}

	job := jobs.ProcessedJob{
		Status:         jobs.Status(strings.TrimSpace(cells[ColStatus])),
		Priority:       cells[ColPriority],
		Interest:       cells[ColInterest],
		Role:           cells[ColRole],
		Company:        cells[ColCompany],
		Location:       cells[ColLocation],
		Salary:         cells[ColSalary],
		CompanyWebsite: cells[ColCompanyWebsite],
		JobLink:        cells[ColJobLink],
		Skills:         cells[ColSkills],
		ReasonForMatch: cells[ColReasonForMatch],
		Rating:         rating,
	}
	return job, ratingErr
}

// DecodeRowLogged decodes a row like DecodeRow and logs a malformed cell instead of failing.
func DecodeRowLogged(row []string, rowNum int, logger *zap.Logger) jobs.ProcessedJob {
	job, err := DecodeRow(row)
	if err != nil && logger != nil {
		logger.Warn("malformed cell decoded as zero",
			zap.Int("row", rowNum),
			zap.String("company", job.Company),
			zap.String("role", job.Role),
			zap.Error(err),
		)
	}
	return job
}

// DecodeRows decodes data rows. Rows without any value are skipped.
// rowOffset is the sheet row number of rows[0] and is used in log lines.
func DecodeRows(rows [][]string, rowOffset int, logger *zap.Logger) []jobs.ProcessedJob {
	items := make([]jobs.ProcessedJob, 0, len(rows))
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		items = append(items, DecodeRowLogged(row, rowOffset+i, logger))
	}
	return items
}

// IsHeaderRow reports whether row already carries the layout headers.
func IsHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	return strings.TrimSpace(row[0]) == Headers[ColStatus]
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
