package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{"node_modules", "dist", "build", "out", "target", "vendor", "__pycache__"}

// DiscoverOptions controls Discover.
type DiscoverOptions struct {
	// Extensions is the allow-list, lower case with a leading dot.
	Extensions []string
	// SkipDirs lists directory names pruned before descent. Nil means
	// DefaultSkipDirs.
	SkipDirs []string
	// HiddenPrefix marks hidden entries. Empty means ".".
	HiddenPrefix string
}

// DiscoverError records one path that could not be traversed.
type DiscoverError struct {
	Path string
	Err  error
}

func (e DiscoverError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e DiscoverError) Unwrap() error { return e.Err }

// Discover walks every root depth-first and returns the matching files.
//
// Behavior:
//   - Files are matched by extension, case-insensitively.
//   - Hidden directories and SkipDirs are pruned before descent; hidden files
//     are ignored. A root is never pruned by its own name.
//   - A root that is itself a matching file is returned as-is.
//   - Paths are cleaned and absolute; duplicates (overlapping roots) keep
//     their first position.
//
// Errors:
//   - A missing root produces one DiscoverError and no files.
//   - An unreadable directory produces one DiscoverError; its siblings are
//     still visited.
func Discover(fsys afero.Fs, roots []string, opts DiscoverOptions) ([]string, []DiscoverError) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	skip := opts.SkipDirs
	if skip == nil {
		skip = DefaultSkipDirs
	}
	hidden := opts.HiddenPrefix
	if hidden == "" {
		hidden = "."
	}

	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}
	extSet := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		extSet[strings.ToLower(e)] = true
	}

	var (
		files []string
		errs  []DiscoverError
		seen  = make(map[string]bool)
	)

	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		files = append(files, p)
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			errs = append(errs, DiscoverError{Path: root, Err: err})
			continue
		}
		abs = filepath.Clean(abs)

		info, err := fsys.Stat(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("source folder does not exist: %w", err)
			}
			errs = append(errs, DiscoverError{Path: abs, Err: err})
			continue
		}
		if !info.IsDir() {
			if extSet[strings.ToLower(filepath.Ext(abs))] {
				add(abs)
			}
			continue
		}

		walkErr := afero.Walk(fsys, abs, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				errs = append(errs, DiscoverError{Path: p, Err: err})
				if fi != nil && fi.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			name := fi.Name()
			if fi.IsDir() {
				if p != abs && (strings.HasPrefix(name, hidden) || skipSet[name]) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, hidden) {
				return nil
			}
			if extSet[strings.ToLower(filepath.Ext(name))] {
				add(p)
			}
			return nil
		})
		if walkErr != nil && !errors.Is(walkErr, filepath.SkipDir) {
			errs = append(errs, DiscoverError{Path: abs, Err: walkErr})
		}
	}

	return files, errs
}
