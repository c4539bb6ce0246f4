// Package gsheets stores processed jobs in a Google Sheets spreadsheet.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/store"
)

const defaultSheet = "Sheet1"

// Config describes the target spreadsheet.
type Config struct {
	SpreadsheetID   string
	Sheet           string
	CredentialsJSON []byte
}

// values is the subset of the Sheets values API used by the store.
type values interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Append(ctx context.Context, rng string, rows [][]any) error
	Update(ctx context.Context, rng string, rows [][]any) error
	Ping(ctx context.Context) error
}

// Store keeps jobs in one sheet. Row 1 holds the headers.
type Store struct {
	sheet  string
	api    values
	logger *zap.Logger
}

// New connects to the Sheets API with the provided service account credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if len(cfg.CredentialsJSON) == 0 {
		return nil, errors.New("google credentials are required")
	}

	srv, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(cfg.CredentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return newStore(&sheetsValues{srv: srv, spreadsheetID: id}, cfg.Sheet, logger), nil
}

func newStore(api values, sheet string, logger *zap.Logger) *Store {
	if sheet = strings.TrimSpace(sheet); sheet == "" {
		sheet = defaultSheet
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{sheet: sheet, api: api, logger: logger}
}

func (s *Store) ReadAll(ctx context.Context) ([]jobs.ProcessedJob, error) {
	rows, err := s.readDataRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStoreRead, err)
	}

	return store.DecodeRows(rows, 2, s.logger), nil
}

func (s *Store) Append(ctx context.Context, items []jobs.ProcessedJob) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(items))
	for _, job := range items {
		rows = append(rows, toCells(store.EncodeRow(job)))
	}

	if err := s.api.Append(ctx, s.rangeOf("A:"+store.LastColumn), rows); err != nil {
		return fmt.Errorf("%w: append %d rows: %w", store.ErrStoreWrite, len(rows), err)
	}

	s.logger.Debug("appended jobs to spreadsheet", zap.String("sheet", s.sheet), zap.Int("count", len(rows)))
	return nil
}

func (s *Store) EnsureHeaders(ctx context.Context) error {
	existing, err := s.api.Get(ctx, s.rangeOf("A1:"+store.LastColumn+"1"))
	if err != nil {
		return fmt.Errorf("%w: read headers: %w", store.ErrStoreRead, err)
	}
	if len(existing) > 0 && len(existing[0]) > 0 {
		return nil
	}

	if err := s.api.Update(ctx, s.rangeOf("A1:"+store.LastColumn+"1"), [][]any{toCells(store.Headers)}); err != nil {
		return fmt.Errorf("%w: write headers: %w", store.ErrStoreWrite, err)
	}

	s.logger.Info("created spreadsheet headers", zap.String("sheet", s.sheet))
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id jobs.Identity, status jobs.Status) error {
	rows, err := s.readDataRows(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrStoreRead, err)
	}

	for i, row := range rows {
		job := store.DecodeRowLogged(row, i+2, s.logger)
		if !job.Matches(id) {
			continue
		}

		cell := fmt.Sprintf("%s%d", store.ColStatus.Letter(), i+2)
		if err := s.api.Update(ctx, s.rangeOf(cell), [][]any{{string(status)}}); err != nil {
			return fmt.Errorf("%w: update %s: %w", store.ErrStoreWrite, cell, err)
		}
		return nil
	}

	return fmt.Errorf("%w: %s / %s / %s", store.ErrRecordNotFound, id.Company, id.Role, id.JobLink)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.api.Ping(ctx)
}

func (s *Store) readDataRows(ctx context.Context) ([][]string, error) {
	raw, err := s.api.Get(ctx, s.rangeOf("A2:"+store.LastColumn))
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, toStrings(r))
	}
	return rows, nil
}

func (s *Store) rangeOf(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.sheet, "'", "''"), cells)
}

func toCells(row []string) []any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

func toStrings(row []any) []string {
	cells := make([]string, len(row))
	for i, v := range row {
		switch val := v.(type) {
		case nil:
			cells[i] = ""
		case string:
			cells[i] = val
		default:
			cells[i] = fmt.Sprintf("%v", val)
		}
	}
	return cells
}

type sheetsValues struct {
	srv           *sheets.Service
	spreadsheetID string
}

func (v *sheetsValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := v.srv.Spreadsheets.Values.Get(v.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (v *sheetsValues) Append(ctx context.Context, rng string, rows [][]any) error {
	_, err := v.srv.Spreadsheets.Values.Append(v.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (v *sheetsValues) Update(ctx context.Context, rng string, rows [][]any) error {
	_, err := v.srv.Spreadsheets.Values.Update(v.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (v *sheetsValues) Ping(ctx context.Context) error {
	if _, err := v.srv.Spreadsheets.Get(v.spreadsheetID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	return nil
}
