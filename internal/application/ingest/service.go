// Package ingestapp orchestrates the ingestion pipeline: discover export
// files, normalize them into canonical orders, deduplicate against the
// store, and commit atomically behind the merge gate.
package ingestapp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dplus/backend/internal/domain/ingestion"
	"github.com/dplus/backend/internal/domain/order"
	"github.com/dplus/backend/internal/infrastructure/config"
	"github.com/dplus/backend/internal/infrastructure/ingest"
)

// IngestionService runs the full pipeline. All writes to the store go
// through here, serialized by the store lock; readers share the same
// lock on its read side.
type IngestionService struct {
	orders    order.Repository
	files     ingestion.SourceFileRepository
	runs      ingestion.RunRepository
	cfg       *config.Config
	loc       *time.Location
	dedup     *Deduplicator
	validator *Validator
	logger    *zap.Logger
	mu        *sync.RWMutex
}

// NewIngestionService creates the pipeline service. The mutex is shared
// with the query side so reads never observe a half-applied merge.
func NewIngestionService(
	orders order.Repository,
	files ingestion.SourceFileRepository,
	runs ingestion.RunRepository,
	cfg *config.Config,
	logger *zap.Logger,
	mu *sync.RWMutex,
) (*IngestionService, error) {
	loc, err := cfg.Ingest.Location()
	if err != nil {
		return nil, err
	}
	return &IngestionService{
		orders:    orders,
		files:     files,
		runs:      runs,
		cfg:       cfg,
		loc:       loc,
		dedup:     NewDeduplicator(),
		validator: NewValidator(cfg.Validation.DataLossTolerance),
		logger:    logger,
		mu:        mu,
	}, nil
}

// Report summarizes one ingestion run for callers.
type Report struct {
	RunID         uuid.UUID           `json:"run_id"`
	Status        ingestion.RunStatus `json:"status"`
	FilesScanned  int                 `json:"files_scanned"`
	FilesIngested int                 `json:"files_ingested"`
	FilesSkipped  int                 `json:"files_skipped"`
	FilesFailed   int                 `json:"files_failed"`
	RowsRead      int                 `json:"rows_read"`
	OrdersAdded   int                 `json:"orders_added"`
	Duplicates    int                 `json:"duplicates"`
	RowsRejected  int                 `json:"rows_rejected"`
	RowsExcluded  int                 `json:"rows_excluded"`
	RowErrors     []ingest.RowError   `json:"row_errors,omitempty"`
	FileFailures  []string            `json:"file_failures,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
}

// Summary renders the one-line outcome of the run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d added, %d duplicates, %d rejected",
		r.OrdersAdded, r.Duplicates, r.RowsRejected)
}

// candidate is one discovered export file.
type candidate struct {
	path     string
	platform order.Platform
}

// pendingFile is a parsed file waiting for the batch commit.
type pendingFile struct {
	record   ingestion.SourceFile
	orders   []*order.Order
	excluded int
}

// Run performs an incremental ingestion: unchanged files are skipped and
// the store only grows. The whole merge commits or rolls back as one.
func (s *IngestionService) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, false)
}

// Rebuild wipes the store and re-ingests every discovered file from
// scratch. The wipe and the re-insert share one transaction, so a failed
// rebuild leaves the previous store intact.
func (s *IngestionService) Rebuild(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, true)
}

func (s *IngestionService) run(ctx context.Context, rebuild bool) (*Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}
	log := s.logger.With(zap.String("run_id", report.RunID.String()), zap.Bool("rebuild", rebuild))

	candidates, err := s.discover()
	if err != nil {
		return nil, err
	}
	report.FilesScanned = len(candidates)
	log.Info("ingestion run started",
		zap.Int("files_scanned", len(candidates)),
		zap.Strings("data_dirs", s.cfg.Ingest.DataDirs))

	rowErrors := ingest.NewErrorCollection(s.cfg.Ingest.MaxRowErrors)
	var pending []pendingFile
	var batch []*order.Order

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pf, skipped, err := s.ingestFile(ctx, c, rebuild, rowErrors)
		if err != nil {
			report.FilesFailed++
			report.FileFailures = append(report.FileFailures, err.Error())
			log.Warn("file rejected", zap.String("path", c.path), zap.Error(err))
			continue
		}
		if skipped {
			report.FilesSkipped++
			continue
		}
		report.FilesIngested++
		report.RowsRead += pf.record.RowCount
		report.RowsExcluded += pf.excluded
		batch = append(batch, pf.orders...)
		pending = append(pending, *pf)
	}
	report.RowsRejected = rowErrors.TotalCount()
	report.RowErrors = rowErrors.Errors()

	if !rebuild && len(pending) == 0 && report.FilesFailed == 0 {
		report.Status = ingestion.RunStatusNoChange
		report.FinishedAt = time.Now()
		s.saveRun(ctx, report, "no new data")
		log.Info("ingestion run finished", zap.String("summary", report.Summary()))
		return report, nil
	}

	added, err := s.commit(ctx, batch, rebuild, report)
	report.OrdersAdded = added
	report.FinishedAt = time.Now()

	switch {
	case err == nil:
		report.Status = ingestion.RunStatusCompleted
	case isDomainCode(err, order.ErrCodeDataLossSuspected) || isDomainCode(err, order.ErrCodeIntegrityViolation):
		report.Status = ingestion.RunStatusRejected
	default:
		report.Status = ingestion.RunStatusFailed
	}

	if err != nil {
		s.saveRun(ctx, report, err.Error())
		log.Error("ingestion run aborted", zap.Error(err))
		return report, err
	}

	// the merge is durable; now update the file registry
	if rebuild {
		if err := s.files.DeleteAll(ctx); err != nil {
			return report, err
		}
	}
	for i := range pending {
		if err := s.files.Save(ctx, &pending[i].record); err != nil {
			return report, err
		}
	}
	s.saveRun(ctx, report, report.Summary())
	log.Info("ingestion run finished",
		zap.String("summary", report.Summary()),
		zap.Int("files_ingested", report.FilesIngested),
		zap.Int("files_skipped", report.FilesSkipped))
	return report, nil
}

// discover lists export files under the configured data directories,
// sorted by path so runs are deterministic.
func (s *IngestionService) discover() ([]candidate, error) {
	var candidates []candidate
	appendMatches := func(dir string, patterns []string, platform order.Platform) error {
		for _, pattern := range patterns {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return fmt.Errorf("bad file pattern %q: %w", pattern, err)
			}
			for _, m := range matches {
				candidates = append(candidates, candidate{path: m, platform: platform})
			}
		}
		return nil
	}

	for _, dir := range s.cfg.Ingest.DataDirs {
		if err := appendMatches(dir, s.cfg.Ingest.TikTokPatterns, order.PlatformTikTok); err != nil {
			return nil, err
		}
		if err := appendMatches(dir, s.cfg.Ingest.ShopeePatterns, order.PlatformShopee); err != nil {
			return nil, err
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].path < candidates[j].path })
	return candidates, nil
}

// ingestFile parses and normalizes one export file. Returns skipped=true
// when the file's checksum matches what was ingested before.
func (s *IngestionService) ingestFile(ctx context.Context, c candidate, rebuild bool, rowErrors *ingest.ErrorCollection) (*pendingFile, bool, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false, ingest.NewSchemaError(c.path, "cannot read file", err)
	}
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	if !rebuild {
		if prev, err := s.files.FindByPath(ctx, c.path); err == nil && prev.Checksum == checksum {
			return nil, true, nil
		}
	}

	schema, ok := ingest.SchemaFor(c.platform)
	if !ok {
		return nil, false, ingest.NewSchemaError(c.path, "no schema for platform "+string(c.platform), nil)
	}

	var src ingest.RowSource
	if strings.HasSuffix(strings.ToLower(c.path), ".xlsx") {
		src, err = ingest.NewXLSXParser(bytes.NewReader(data))
	} else {
		src, err = ingest.NewCSVParser(bytes.NewReader(data))
	}
	if err != nil {
		return nil, false, ingest.NewSchemaError(c.path, "cannot parse file", err)
	}
	if err := schema.ValidateHeaders(c.path, src); err != nil {
		return nil, false, err
	}

	rows, err := src.ReadAllRows()
	if err != nil {
		return nil, false, ingest.NewSchemaError(c.path, "cannot read rows", err)
	}

	normalizer := ingest.NewNormalizer(schema, s.loc, s.cfg.Ingest.DenylistKeywords)
	res := normalizer.NormalizeRows(rows, s.cfg.Ingest.MaxRowErrors)

	if res.Total > 0 {
		malformed := float64(res.Errors.TotalCount()) / float64(res.Total)
		if malformed > s.cfg.Ingest.MalformedRowTolerance {
			return nil, false, ingest.NewSchemaError(c.path,
				fmt.Sprintf("%.0f%% of rows are malformed, above the %.0f%% tolerance",
					malformed*100, s.cfg.Ingest.MalformedRowTolerance*100), nil)
		}
	}
	rowErrors.Merge(res.Errors)

	return &pendingFile{
		record: ingestion.SourceFile{
			ID:         uuid.New(),
			Path:       c.path,
			Checksum:   checksum,
			Platform:   c.platform,
			SizeBytes:  int64(len(data)),
			RowCount:   res.Total,
			IngestedAt: time.Now(),
		},
		orders:   res.Orders,
		excluded: res.Excluded,
	}, false, nil
}

// commit deduplicates and writes the batch inside one transaction guarded
// by the merge gate. Returns the number of orders actually inserted.
func (s *IngestionService) commit(ctx context.Context, batch []*order.Order, rebuild bool, report *Report) (int, error) {
	var added int
	err := s.orders.Transaction(ctx, func(tx order.Repository) error {
		pre, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}

		existing := map[order.Key]struct{}{}
		if rebuild {
			if err := tx.DeleteAll(ctx); err != nil {
				return err
			}
		} else {
			if existing, err = tx.ExistingKeys(ctx); err != nil {
				return err
			}
		}

		part := s.dedup.Partition(batch, existing)
		report.Duplicates = part.Duplicates

		if err := tx.InsertBatch(ctx, part.Fresh); err != nil {
			return err
		}
		added = len(part.Fresh)

		post, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		if rebuild {
			return s.validator.ValidateRebuild(pre, post, added)
		}
		return s.validator.ValidateMerge(pre, post, added)
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// IntegrityReport is the result of a full-store diagnostic scan.
type IntegrityReport struct {
	Counts   order.IntegrityCounts `json:"counts"`
	Findings []Finding             `json:"findings"`
	Healthy  bool                  `json:"healthy"`
}

// Integrity runs the read-only diagnostic scan over the whole store.
func (s *IngestionService) Integrity(ctx context.Context) (*IntegrityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	minDate := time.Date(s.cfg.Validation.SaneDateFloor, 1, 1, 0, 0, 0, 0, s.loc)
	maxDate := time.Now().In(s.loc).Add(24 * time.Hour)

	counts, err := s.orders.IntegrityCounts(ctx, minDate, maxDate)
	if err != nil {
		return nil, err
	}
	findings := IntegrityFindings(counts)
	return &IntegrityReport{
		Counts:   counts,
		Findings: findings,
		Healthy:  len(findings) == 0,
	}, nil
}

// Runs returns the most recent ingestion runs, newest first.
func (s *IngestionService) Runs(ctx context.Context, limit int) ([]ingestion.Run, error) {
	return s.runs.FindRecent(ctx, limit)
}

// saveRun persists the audit record; a failure here only logs, the merge
// outcome already stands.
func (s *IngestionService) saveRun(ctx context.Context, report *Report, message string) {
	run := &ingestion.Run{
		ID:            report.RunID,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Status:        report.Status,
		FilesScanned:  report.FilesScanned,
		FilesIngested: report.FilesIngested,
		FilesSkipped:  report.FilesSkipped,
		FilesFailed:   report.FilesFailed,
		RowsRead:      report.RowsRead,
		OrdersAdded:   report.OrdersAdded,
		Duplicates:    report.Duplicates,
		RowsRejected:  report.RowsRejected,
		RowsExcluded:  report.RowsExcluded,
		Message:       message,
	}
	if err := s.runs.Save(ctx, run); err != nil {
		s.logger.Error("failed to record ingestion run", zap.Error(err))
	}
}

// isDomainCode checks whether err is a DomainError carrying the code.
func isDomainCode(err error, code string) bool {
	if de, ok := err.(*order.DomainError); ok {
		return de.Code == code
	}
	return false
}
