// Package xlsx stores processed jobs in a local workbook file.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/store"
)

const (
	defaultSheet = "Jobs"
	// excelize creates new workbooks with this sheet.
	initialSheet = "Sheet1"
)

// Store keeps jobs in a single sheet of an .xlsx workbook.
// Every write is saved into a temporary file that replaces the workbook,
// so a failed batch leaves previous rows untouched.
type Store struct {
	path   string
	sheet  string
	logger *zap.Logger

	mu sync.Mutex
}

// New returns a workbook store. An empty sheet name defaults to "Jobs".
func New(path, sheet string, logger *zap.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("workbook path is required")
	}
	if sheet = strings.TrimSpace(sheet); sheet == "" {
		sheet = defaultSheet
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{path: path, sheet: sheet, logger: logger}, nil
}

func (s *Store) ReadAll(_ context.Context) ([]jobs.ProcessedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStoreRead, err)
	}
	if f == nil {
		return []jobs.ProcessedJob{}, nil
	}
	defer f.Close()

	rows, err := s.dataRows(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStoreRead, err)
	}

	return store.DecodeRows(rows, 2, s.logger), nil
}

func (s *Store) Append(_ context.Context, items []jobs.ProcessedJob) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openOrCreate()
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("%w: read rows: %w", store.ErrStoreWrite, err)
	}

	next := len(rows) + 1
	if next < 2 {
		if err := s.writeHeaders(f); err != nil {
			return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
		}
		next = 2
	}

	for i, job := range items {
		row := store.EncodeRow(job)
		cell, err := excelize.CoordinatesToCellName(1, next+i)
		if err != nil {
			return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
		}
		if err := f.SetSheetRow(s.sheet, cell, &row); err != nil {
			return fmt.Errorf("%w: write row %d: %w", store.ErrStoreWrite, next+i, err)
		}
	}

	if err := s.save(f); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}

	s.logger.Debug("appended jobs to workbook",
		zap.String("path", s.path),
		zap.Int("count", len(items)),
		zap.Int("first_row", next),
	)

	return nil
}

func (s *Store) EnsureHeaders(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openOrCreate()
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("%w: read rows: %w", store.ErrStoreWrite, err)
	}
	if len(rows) > 0 {
		return nil
	}

	if err := s.writeHeaders(f); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}

	if err := s.save(f); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}

	s.logger.Info("created workbook headers", zap.String("path", s.path), zap.String("sheet", s.sheet))
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, id jobs.Identity, status jobs.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreRead, err)
	}
	if f == nil {
		return fmt.Errorf("%w: %s / %s / %s", store.ErrRecordNotFound, id.Company, id.Role, id.JobLink)
	}
	defer f.Close()

	rows, err := s.dataRows(f)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreRead, err)
	}

	items := decodeAligned(rows, s.logger)

	idx := store.FindRow(items, id)
	if idx == -1 {
		return fmt.Errorf("%w: %s / %s / %s", store.ErrRecordNotFound, id.Company, id.Role, id.JobLink)
	}

	cell, err := excelize.CoordinatesToCellName(int(store.ColStatus)+1, idx+2)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}
	if err := f.SetCellStr(s.sheet, cell, string(status)); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}

	if err := s.save(f); err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
	}

	return nil
}

func (s *Store) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("workbook directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workbook directory %q is not a directory", dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	if f != nil {
		f.Close()
	}
	return nil
}

// open returns nil without error when the workbook does not exist yet.
func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open workbook %q: %w", s.path, err)
	}
	return f, nil
}

func (s *Store) openOrCreate() (*excelize.File, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}

	if f == nil {
		f = excelize.NewFile()
		if s.sheet != initialSheet {
			if err := f.SetSheetName(initialSheet, s.sheet); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		}
		return f, nil
	}

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("lookup sheet %q: %w", s.sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", s.sheet, err)
		}
	}

	return f, nil
}

// dataRows returns every row below the header row.
func (s *Store) dataRows(f *excelize.File) ([][]string, error) {
	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("lookup sheet %q: %w", s.sheet, err)
	}
	if idx == -1 {
		return nil, nil
	}

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func (s *Store) writeHeaders(f *excelize.File) error {
	headers := append([]string(nil), store.Headers...)
	if err := f.SetSheetRow(s.sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	return nil
}

// save writes the workbook next to the target and renames it into place.
func (s *Store) save(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".jobs-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	if err := f.SaveAs(tmpName); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save workbook: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace workbook: %w", err)
	}

	return nil
}

// decodeAligned decodes rows keeping one entry per sheet row, so indexes map to row numbers.
func decodeAligned(rows [][]string, logger *zap.Logger) []jobs.ProcessedJob {
	items := make([]jobs.ProcessedJob, len(rows))
	for i, row := range rows {
		items[i] = store.DecodeRowLogged(row, i+2, logger)
	}
	return items
}
