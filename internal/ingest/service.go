// Package ingest runs the scan-and-populate workflow: discover and parse
// source folders, infer a schema, materialize the target table and load the
// records in batches, reporting staged progress.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"jsonetl/internal/dyntable"
	"jsonetl/internal/metrics"
	"jsonetl/internal/scan"
	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
	"jsonetl/pkg/records"
)

// ErrTargetBusy is returned when another call is already working on the same
// target table in this process.
var ErrTargetBusy = errors.New("ingest: target is busy")

// Phase names a stage of ScanAndPopulate.
type Phase string

const (
	PhaseScanning      Phase = "scanning"
	PhaseTableCreation Phase = "table_creation"
	PhasePopulation    Phase = "population"
	PhaseCompleted     Phase = "completed"
)

// Event is one progress notification. Scan is set for scanning sub-progress,
// Load for per-batch population progress.
type Event struct {
	Phase   Phase
	Message string
	Scan    *scan.Progress
	Load    *dyntable.LoadProgress
}

// Config wires a Service.
type Config struct {
	Store storage.Store
	// Scan configures the scanner built for every scan. Its OnProgress is
	// chained with the per-call event callback.
	Scan   scan.Options
	Logger *zap.Logger
	// Job labels metrics. Empty means "jsonetl".
	Job string
}

// RunOptions tunes one ScanAndPopulate or PopulateDataTable call.
type RunOptions struct {
	BatchSize int
	OnEvent   func(Event)
}

// Outcome is the result of ScanAndPopulate.
type Outcome struct {
	Scan       *scan.Results
	Table      *dyntable.Table // nil when no table was needed
	Population *dyntable.PopulationResults
}

// Service owns the store handle and remembers the last scan.
type Service struct {
	store storage.Store
	scan  scan.Options
	log   *zap.Logger
	job   string

	mu       sync.Mutex
	lastScan *scan.Results
	errorLog []string
	busy     map[string]bool
}

// New returns a Service for cfg.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	job := cfg.Job
	if job == "" {
		job = "jsonetl"
	}
	if cfg.Scan.Logger == nil {
		cfg.Scan.Logger = log
	}
	return &Service{
		store: cfg.Store,
		scan:  cfg.Scan,
		log:   log,
		job:   job,
		busy:  make(map[string]bool),
	}
}

// LastScan returns the most recent scan results, or nil.
func (s *Service) LastScan() *scan.Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

// ErrorLog returns the messages accumulated since the last scan started.
func (s *Service) ErrorLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errorLog...)
}

func (s *Service) logErrors(msgs ...string) {
	s.mu.Lock()
	s.errorLog = append(s.errorLog, msgs...)
	s.mu.Unlock()
}

func (s *Service) acquire(target string) (func(), error) {
	key := dyntable.TableName(target)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[key] {
		return nil, fmt.Errorf("%w: %s", ErrTargetBusy, target)
	}
	s.busy[key] = true
	return func() {
		s.mu.Lock()
		delete(s.busy, key)
		s.mu.Unlock()
	}, nil
}

// ScanSourceFolders scans folders and caches the results.
func (s *Service) ScanSourceFolders(ctx context.Context, folders []scan.SourceFolder) (*scan.Results, error) {
	res, _, err := s.runScan(ctx, folders, "", nil)
	return res, err
}

// runScan scans folders and caches the results. target, when set, is stamped
// on the results before they become visible through LastScan.
func (s *Service) runScan(ctx context.Context, folders []scan.SourceFolder, target string, onEvent func(Event)) (*scan.Results, []records.Record, error) {
	s.mu.Lock()
	s.errorLog = nil
	s.mu.Unlock()

	opts := s.scan
	if onEvent != nil {
		inner := opts.OnProgress
		opts.OnProgress = func(p scan.Progress) {
			if inner != nil {
				inner(p)
			}
			msg := fmt.Sprintf("Scanning %s (%d/%d files)", p.Folder, p.FilesDone, p.FilesTotal)
			onEvent(Event{Phase: PhaseScanning, Message: msg, Scan: &p})
		}
	}

	start := time.Now()
	res, recs, err := scan.New(opts).Scan(ctx, folders)
	metrics.RecordStep(s.job, string(PhaseScanning), err, time.Since(start))
	if err != nil {
		return res, nil, err
	}
	res.TargetID = target

	metrics.RecordFiles(s.job, "processed", int64(res.ProcessedFiles))
	metrics.RecordFiles(s.job, "failed", int64(res.FileErrors))
	metrics.RecordRow(s.job, "scanned", int64(res.TotalRecords))

	msgs := make([]string, len(res.Errors))
	for i, e := range res.Errors {
		msgs[i] = e.Error()
	}
	s.logErrors(msgs...)

	s.mu.Lock()
	s.lastScan = res
	s.mu.Unlock()

	s.log.Info("stage complete",
		zap.String("stage", string(PhaseScanning)),
		zap.String("scan_id", res.ID),
		zap.Int("files", res.TotalFiles),
		zap.Int("file_errors", res.FileErrors),
		zap.Int("records", res.TotalRecords),
		zap.Int("columns", len(res.Columns)),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return res, recs, nil
}

// CreateDataTable materializes columns as the table of target.
func (s *Service) CreateDataTable(ctx context.Context, target string, cols []schema.Column) (*dyntable.Table, error) {
	start := time.Now()
	t, err := dyntable.Create(ctx, s.store, target, cols, dyntable.CreateOptions{Logger: s.log})
	metrics.RecordStep(s.job, string(PhaseTableCreation), err, time.Since(start))
	if err != nil {
		s.logErrors(err.Error())
		return nil, err
	}
	s.log.Info("stage complete",
		zap.String("stage", string(PhaseTableCreation)),
		zap.String("table", t.Name),
		zap.Bool("created", t.Created),
		zap.Strings("added", t.Added),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return t, nil
}

// PopulateDataTable loads recs into the table of target.
func (s *Service) PopulateDataTable(ctx context.Context, target string, recs []records.Record, opts RunOptions) (*dyntable.PopulationResults, error) {
	popts := dyntable.PopulateOptions{BatchSize: opts.BatchSize, Logger: s.log}
	if opts.OnEvent != nil {
		popts.OnProgress = func(p dyntable.LoadProgress) {
			msg := fmt.Sprintf("Inserted batch %d/%d (%d/%d records)", p.Batch, p.TotalBatches, p.Processed, p.Total)
			opts.OnEvent(Event{Phase: PhasePopulation, Message: msg, Load: &p})
		}
	}

	start := time.Now()
	res, err := dyntable.Populate(ctx, s.store, target, recs, popts)
	metrics.RecordStep(s.job, string(PhasePopulation), err, time.Since(start))
	if res != nil {
		failed := len(res.Errors)
		metrics.RecordBatches(s.job, false, int64(res.Batches-failed))
		metrics.RecordBatches(s.job, true, int64(failed))
		metrics.RecordRow(s.job, "inserted", int64(res.InsertedRecords))
		metrics.RecordRow(s.job, "failed", int64(res.TotalRecords-res.InsertedRecords))
		msgs := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			msgs[i] = e.Error()
		}
		s.logErrors(msgs...)
	}
	if err != nil {
		s.logErrors(err.Error())
		return res, err
	}

	s.log.Info("stage complete",
		zap.String("stage", string(PhasePopulation)),
		zap.String("table", res.Table),
		zap.Int("inserted", res.InsertedRecords),
		zap.Int("total", res.TotalRecords),
		zap.Int("batches", res.Batches),
		zap.Int("batch_errors", len(res.Errors)),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return res, nil
}

// ScanAndPopulate runs every phase in order: scanning, table_creation,
// population, completed. One event is emitted per phase transition, plus
// scanning and per-batch sub-progress. A scan that finds no records skips
// straight to completed without touching the store.
//
// Data problems (unreadable files, failed batches) are reported in the
// Outcome. Errors are returned for invalid arguments, a busy target,
// cancellation and store failures.
func (s *Service) ScanAndPopulate(ctx context.Context, folders []scan.SourceFolder, target string, opts RunOptions) (*Outcome, error) {
	if err := checkTarget(s.store, target); err != nil {
		return nil, err
	}
	release, err := s.acquire(target)
	if err != nil {
		return nil, err
	}
	defer release()

	emit := func(p Phase, msg string) {
		if opts.OnEvent != nil {
			opts.OnEvent(Event{Phase: p, Message: msg})
		}
	}

	emit(PhaseScanning, fmt.Sprintf("Scanning %d source folder(s)", len(folders)))
	res, recs, err := s.runScan(ctx, folders, target, opts.OnEvent)
	if err != nil {
		if res != nil {
			res.TargetID = target
		}
		return &Outcome{Scan: res}, err
	}
	out := &Outcome{Scan: res}

	if len(recs) == 0 {
		out.Population = &dyntable.PopulationResults{Table: dyntable.TableName(target)}
		emit(PhaseCompleted, fmt.Sprintf("No records found in %d file(s)", res.TotalFiles))
		return out, nil
	}

	emit(PhaseTableCreation, fmt.Sprintf("Creating table for %d column(s)", len(res.Columns)))
	out.Table, err = s.CreateDataTable(ctx, target, res.Columns)
	if err != nil {
		return out, err
	}

	emit(PhasePopulation, fmt.Sprintf("Inserting %d record(s)", len(recs)))
	out.Population, err = s.PopulateDataTable(ctx, target, recs, opts)
	if err != nil {
		return out, err
	}

	emit(PhaseCompleted, fmt.Sprintf("Inserted %d of %d record(s) into %s",
		out.Population.InsertedRecords, out.Population.TotalRecords, out.Population.Table))
	return out, nil
}

func checkTarget(store storage.Store, target string) error {
	if strings.TrimSpace(target) == "" {
		return dyntable.ErrMissingTarget
	}
	if store == nil || !store.Connected() {
		return dyntable.ErrStoreDisconnected
	}
	return nil
}
