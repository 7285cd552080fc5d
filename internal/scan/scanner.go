package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"jsonetl/internal/datasource/file"
	jsonparser "jsonetl/internal/parser/json"
	"jsonetl/internal/schema"
	"jsonetl/internal/transformer"
	"jsonetl/pkg/records"
)

// DefaultFileProgressEvery is the number of files between progress reports.
const DefaultFileProgressEvery = 10

// Options configures a Scanner.
type Options struct {
	// Fs is the filesystem to read. Nil means the OS filesystem.
	Fs      afero.Fs
	Parser  jsonparser.Options
	Flatten transformer.FlattenOptions
	// SkipDirs overrides file.DefaultSkipDirs when non-nil.
	SkipDirs []string
	// FileProgressEvery <= 0 means DefaultFileProgressEvery.
	FileProgressEvery int
	OnProgress        func(Progress)
	Logger            *zap.Logger
}

// Scanner discovers, parses and flattens record files.
type Scanner struct {
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

// New returns a Scanner for opts.
func New(opts Options) *Scanner {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.FileProgressEvery <= 0 {
		opts.FileProgressEvery = DefaultFileProgressEvery
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{opts: opts, log: log, now: time.Now}
}

// Scan processes every folder in order and returns the results together with
// all records read.
//
// A file that fails to open or parse contributes none of its records and one
// Error. A file reached through more than one folder is read once. The only
// returned error is ctx's, in which case the partial results are returned
// and the records are discarded.
func (s *Scanner) Scan(ctx context.Context, folders []SourceFolder) (*Results, []records.Record, error) {
	res := &Results{ID: uuid.NewString(), ScannedAt: s.now().UTC()}
	var all []records.Record
	seen := make(map[string]bool)

	for fi, folder := range folders {
		if err := ctx.Err(); err != nil {
			return res, nil, err
		}

		paths, derrs := file.Discover(s.opts.Fs, []string{folder.Path}, file.DiscoverOptions{
			Extensions: jsonparser.Extensions(),
			SkipDirs:   s.opts.SkipDirs,
		})
		for _, de := range derrs {
			res.Errors = append(res.Errors, Error{Path: de.Path, Message: de.Err.Error()})
			s.log.Warn("discovery error", zap.String("path", de.Path), zap.Error(de.Err))
		}

		files := paths[:0:0]
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
		res.TotalFiles += len(files)

		s.log.Info("scanning folder",
			zap.String("folder", folder.Path),
			zap.Int("files", len(files)))
		s.progress(Progress{
			Folder: folder.Path, FolderIndex: fi + 1, FolderCount: len(folders),
			FilesTotal: len(files), Records: len(all),
		})

		for i, path := range files {
			recs, stats, err := s.scanFile(ctx, path)
			if err != nil {
				if cerr := ctx.Err(); cerr != nil {
					return res, nil, cerr
				}
				res.FileErrors++
				res.Errors = append(res.Errors, Error{Path: path, Message: err.Error()})
				s.log.Warn("file skipped", zap.String("path", path), zap.Error(err))
			} else {
				res.ProcessedFiles++
				res.Warnings += stats.Warnings
				all = append(all, recs...)
			}

			done := i + 1
			if done%s.opts.FileProgressEvery == 0 || done == len(files) {
				s.progress(Progress{
					Folder: folder.Path, FolderIndex: fi + 1, FolderCount: len(folders),
					FilesDone: done, FilesTotal: len(files), Records: len(all),
				})
			}
		}
	}

	res.TotalRecords = len(all)
	res.Columns = schema.Infer(all)
	return res, all, nil
}

// ScanSourceFolders is Scan without the records.
func (s *Scanner) ScanSourceFolders(ctx context.Context, folders []SourceFolder) (*Results, error) {
	res, _, err := s.Scan(ctx, folders)
	return res, err
}

func (s *Scanner) progress(p Progress) {
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(p)
	}
}

// scanFile reads one file into flattened records stamped with its path.
func (s *Scanner) scanFile(ctx context.Context, path string) ([]records.Record, jsonparser.Stats, error) {
	kind, err := jsonparser.KindForPath(path)
	if err != nil {
		return nil, jsonparser.Stats{}, err
	}
	rc, err := file.NewLocal(s.opts.Fs, path).Open(ctx)
	if err != nil {
		return nil, jsonparser.Stats{}, err
	}
	defer rc.Close()

	popts := s.opts.Parser
	userWarn := popts.OnWarning
	popts.OnWarning = func(line int, werr error) {
		s.log.Debug("record skipped",
			zap.String("path", path),
			zap.Int("line", line),
			zap.Error(werr))
		if userWarn != nil {
			userWarn(line, werr)
		}
	}

	var recs []records.Record
	stats, err := jsonparser.Parse(ctx, kind, rc, func(obj map[string]any) error {
		rec := transformer.Flatten(obj, s.opts.Flatten)
		rec.SetSourceFile(path)
		recs = append(recs, rec)
		return nil
	}, popts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, stats, err
		}
		return nil, stats, fmt.Errorf("%s parse: %w", kind, err)
	}
	return recs, stats, nil
}
