package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/gosuri/uiprogress"

	"jsonetl/internal/ingest"
	"jsonetl/internal/scan"
)

// progressUI renders scanning and population progress as terminal bars.
// A disabled UI ignores every call.
type progressUI struct {
	enabled bool
	p       *uiprogress.Progress

	mu      sync.Mutex
	started bool
	folder  string
	scanBar *uiprogress.Bar
	loadBar *uiprogress.Bar
}

func newProgressUI(w io.Writer, enabled bool) *progressUI {
	ui := &progressUI{enabled: enabled}
	if enabled {
		ui.p = uiprogress.New()
		ui.p.SetOut(w)
	}
	return ui
}

func (ui *progressUI) start() {
	if !ui.enabled {
		return
	}
	ui.mu.Lock()
	defer ui.mu.Unlock()
	ui.p.Start()
	ui.started = true
}

func (ui *progressUI) stop() {
	if !ui.enabled {
		return
	}
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.started {
		ui.p.Stop()
		ui.started = false
	}
}

func (ui *progressUI) scanProgress(sp scan.Progress) {
	if !ui.enabled || sp.FilesTotal == 0 {
		return
	}
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.scanBar == nil || ui.folder != sp.Folder {
		ui.folder = sp.Folder
		label := fmt.Sprintf("Scanning %s (%d/%d): ", sp.Folder, sp.FolderIndex, sp.FolderCount)
		ui.scanBar = ui.p.AddBar(sp.FilesTotal).AppendCompleted().PrependElapsed()
		ui.scanBar.PrependFunc(func(*uiprogress.Bar) string { return label })
	}
	_ = ui.scanBar.Set(sp.FilesDone)
}

func (ui *progressUI) event(e ingest.Event) {
	if !ui.enabled || e.Load == nil || e.Load.TotalBatches == 0 {
		return
	}
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.loadBar == nil {
		ui.loadBar = ui.p.AddBar(e.Load.TotalBatches).AppendCompleted().PrependElapsed()
		ui.loadBar.PrependFunc(func(*uiprogress.Bar) string { return "Inserting batches: " })
	}
	_ = ui.loadBar.Set(e.Load.Batch)
}
