// Package ingestion loads transaction files into the sandbox store.
package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/repository"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// ImportResult is returned from a successful import.
type ImportResult struct {
	Format            string `json:"format"`
	RecordsParsed     int    `json:"records_parsed"`
	RecordsImported   int    `json:"records_imported"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	Scored            int    `json:"scored"`
}

// Scorer assigns a verdict to rows that arrive without a status.
type Scorer interface {
	Score(amount decimal.Decimal) (domain.Verdict, error)
}

// Service handles imports of transaction files.
type Service struct {
	repo   *repository.TransactionRepo
	scorer Scorer
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a new ingestion service.
func NewService(repo *repository.TransactionRepo, scorer Scorer, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		scorer: scorer,
		log:    log,
		now:    time.Now,
	}
}

// FormatFromPath picks the parser for a file by its extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Import parses data and stores every row whose id is not already known.
// Rows without a status are scored as if they had just been submitted.
func (s *Service) Import(data []byte, format string) (*ImportResult, error) {
	var txns []domain.Transaction
	var err error

	switch format {
	case FormatJSON:
		txns, err = ParseJSON(data)
	case FormatCSV:
		txns, err = ParseCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}

	scored := 0
	for i := range txns {
		wasScored, err := s.prepare(&txns[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if wasScored {
			scored++
		}
	}

	inserted, err := s.repo.BulkInsert(txns)
	if err != nil {
		return nil, fmt.Errorf("insert records: %w", err)
	}

	s.log.Info().
		Str("format", format).
		Int("parsed", len(txns)).
		Int("imported", inserted).
		Int("scored", scored).
		Msg("imported transactions")

	return &ImportResult{
		Format:            format,
		RecordsParsed:     len(txns),
		RecordsImported:   inserted,
		DuplicatesSkipped: len(txns) - inserted,
		Scored:            scored,
	}, nil
}

// prepare validates tx and fills in what the file left out. It reports
// whether the row was scored.
func (s *Service) prepare(tx *domain.Transaction) (bool, error) {
	tx.ID = strings.TrimSpace(tx.ID)
	tx.UserID = strings.TrimSpace(tx.UserID)
	switch {
	case tx.ID == "":
		return false, errors.New("id is required")
	case tx.UserID == "":
		return false, fmt.Errorf("%s: user id is required", tx.ID)
	case !tx.Amount.IsPositive():
		return false, fmt.Errorf("%s: amount must be positive", tx.ID)
	}

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	if tx.Violations == nil {
		tx.Violations = []string{}
	}

	if tx.Status != "" {
		if !tx.Status.Valid() {
			return false, fmt.Errorf("%s: unknown status %q", tx.ID, tx.Status)
		}
		return false, nil
	}

	v, err := s.scorer.Score(tx.Amount)
	if err != nil {
		return false, fmt.Errorf("%s: %w", tx.ID, err)
	}
	tx.Status = v.Status
	tx.RiskScore = v.RiskScore
	tx.Violations = v.Violations
	return true, nil
}

// SeedIfEmpty imports the seed file when the store has no transactions.
// It returns how many rows were inserted.
func (s *Service) SeedIfEmpty(path string) (int, error) {
	count, err := s.repo.Count()
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	if count > 0 {
		s.log.Info().Int("count", count).Msg("store already populated, skipping seed")
		return 0, nil
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return 0, err
	}
	data, found, err := readSeed(path)
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("path", found).Msg("loaded seed file")

	res, err := s.Import(data, format)
	if err != nil {
		return 0, err
	}
	return res.RecordsImported, nil
}

// readSeed tries path as given, then relative to the executable.
func readSeed(path string) ([]byte, string, error) {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		if exe, err := os.Executable(); err == nil {
			dir := filepath.Dir(exe)
			candidates = append(candidates,
				filepath.Join(dir, path),
				filepath.Join(dir, "..", "..", path),
			)
		}
	}

	var loadErr error
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		loadErr = err
	}
	return nil, "", fmt.Errorf("could not find %s in any candidate path: %w", path, loadErr)
}
