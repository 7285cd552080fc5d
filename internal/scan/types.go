// Package scan turns source folders into flattened, provenance-stamped
// records plus the schema inferred across them.
package scan

import (
	"time"

	"jsonetl/internal/schema"
)

// SourceFolder is one directory (or file) to ingest.
type SourceFolder struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Error is a file- or folder-level problem found while scanning. Errors are
// data: a scan with errors still succeeds.
type Error struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e Error) Error() string { return e.Path + ": " + e.Message }

// Results summarizes one scan.
//
// ProcessedFiles + number of file-level entries in Errors == TotalFiles.
// Folder-level discovery errors are reported in Errors but are not files.
type Results struct {
	ID             string          `json:"id"`
	TargetID       string          `json:"target_id,omitempty"`
	TotalFiles     int             `json:"total_files"`
	ProcessedFiles int             `json:"processed_files"`
	FileErrors     int             `json:"file_errors"`
	TotalRecords   int             `json:"total_records"`
	Warnings       int             `json:"warnings"`
	Columns        []schema.Column `json:"columns"`
	Errors         []Error         `json:"errors,omitempty"`
	ScannedAt      time.Time       `json:"scanned_at"`
}

// Progress is reported when a folder starts and every few files.
type Progress struct {
	Folder      string
	FolderIndex int // 1-based
	FolderCount int
	FilesDone   int // within the folder
	FilesTotal  int // within the folder
	Records     int // across the scan so far
}
