// Package postgres stores processed jobs in a PostgreSQL table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/store"
)

const table = "job_records"

var columns = []string{
	"status", "priority", "interest", "role", "company", "location", "salary",
	"company_website", "job_link", "skills", "reason_for_match", "rating",
}

const schema = `
CREATE TABLE IF NOT EXISTS job_records (
	id               BIGSERIAL PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'To Review',
	priority         TEXT NOT NULL DEFAULT '1',
	interest         TEXT NOT NULL DEFAULT '1',
	role             TEXT NOT NULL,
	company          TEXT NOT NULL,
	location         TEXT NOT NULL DEFAULT '',
	salary           TEXT NOT NULL DEFAULT '',
	company_website  TEXT NOT NULL DEFAULT '',
	job_link         TEXT NOT NULL DEFAULT '',
	skills           TEXT NOT NULL DEFAULT '',
	reason_for_match TEXT NOT NULL DEFAULT '',
	rating           DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS job_records_job_link_idx ON job_records (job_link);`

// db is the subset of pgxpool.Pool used by the store.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
}

// Store keeps jobs in the job_records table, ordered by insertion.
type Store struct {
	db     db
	logger *zap.Logger
}

// NewPool creates and verifies a pgxpool connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// New returns a store backed by pool.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: pool, logger: logger}
}

func (s *Store) ReadAll(ctx context.Context) ([]jobs.ProcessedJob, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status, priority, interest, role, company, location, salary,
		        company_website, job_link, skills, reason_for_match, rating
		 FROM job_records
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query job_records: %w", store.ErrStoreRead, err)
	}
	defer rows.Close()

	items := make([]jobs.ProcessedJob, 0)
	for rows.Next() {
		var (
			j      jobs.ProcessedJob
			status string
		)
		if err := rows.Scan(
			&status, &j.Priority, &j.Interest, &j.Role, &j.Company, &j.Location, &j.Salary,
			&j.CompanyWebsite, &j.JobLink, &j.Skills, &j.ReasonForMatch, &j.Rating,
		); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", store.ErrStoreRead, err)
		}
		j.Status = jobs.Status(status)
		items = append(items, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStoreRead, err)
	}

	return items, nil
}

// Append copies the batch in a single COPY statement, which either inserts every row or none.
func (s *Store) Append(ctx context.Context, items []jobs.ProcessedJob) error {
	if len(items) == 0 {
		return nil
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(copyRows(items)))
	if err != nil {
		return fmt.Errorf("%w: copy into job_records: %w", store.ErrStoreWrite, err)
	}

	s.logger.Debug("appended jobs to postgres", zap.Int64("count", n))
	return nil
}

// EnsureHeaders creates the table. It is the relational counterpart of the header row.
func (s *Store) EnsureHeaders(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: create job_records: %w", store.ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id jobs.Identity, status jobs.Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE job_records
		 SET status = $1, updated_at = NOW()
		 WHERE id = (
		   SELECT id FROM job_records
		   WHERE company = $2 AND role = $3 AND job_link = $4
		   ORDER BY id
		   LIMIT 1
		 )`,
		string(status), id.Company, id.Role, id.JobLink,
	)
	if err != nil {
		return fmt.Errorf("%w: update status: %w", store.ErrStoreWrite, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s / %s / %s", store.ErrRecordNotFound, id.Company, id.Role, id.JobLink)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func copyRows(items []jobs.ProcessedJob) [][]any {
	rows := make([][]any, 0, len(items))
	for _, j := range items {
		status := j.Status
		if status == "" {
			status = jobs.StatusToReview
		}
		rows = append(rows, []any{
			string(status), j.Priority, j.Interest, j.Role, j.Company, j.Location, j.Salary,
			j.CompanyWebsite, j.JobLink, j.Skills, j.ReasonForMatch, j.Rating,
		})
	}
	return rows
}
