package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/reelfix/reelfix-agent/internal/catalog"
)

const refreshInterval = 3 * time.Second

type Tray struct {
	catalogSvc catalog.CatalogService
	repo       catalog.Repository
	runner     *catalog.Runner
	logger     *slog.Logger

	statusItem     *systray.MenuItem
	recordingsItem *systray.MenuItem
	pauseItem      *systray.MenuItem

	mu sync.Mutex

	onOpenExports func() error
	onQuit        func()
}

type TrayConfig struct {
	CatalogService catalog.CatalogService
	Repository     catalog.Repository
	Runner         *catalog.Runner
	Logger         *slog.Logger
	OnOpenExports  func() error
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		catalogSvc:    cfg.CatalogService,
		repo:          cfg.Repository,
		runner:        cfg.Runner,
		logger:        cfg.Logger,
		onOpenExports: cfg.OnOpenExports,
		onQuit:        cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Reelfix")
	systray.SetTooltip("Reelfix Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.recordingsItem = systray.AddMenuItem("Recordings: 0", "Recordings received")
	t.recordingsItem.Disable()

	systray.AddSeparator()

	pauseTitle := "Pause"
	if t.runner != nil && t.runner.IsPaused() {
		pauseTitle = "Resume"
	}
	t.pauseItem = systray.AddMenuItem(pauseTitle, "Pause processing")

	exportsItem := systray.AddMenuItem("Open Exports Folder", "Show exported recordings")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Reelfix Agent")

	ticker := time.NewTicker(refreshInterval)
	go func() {
		defer ticker.Stop()
		t.refresh()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-exportsItem.ClickedCh:
				t.handleOpenExports()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	paused := !t.runner.IsPaused()
	if paused {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
	} else {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
	}
	t.statusItem.SetTitle(statusTitle(paused, 0, 0))

	if t.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := t.repo.SetConfig(ctx, catalog.ConfigRunnerPaused, strconv.FormatBool(paused)); err != nil {
			t.logger.Warn("failed to persist runner state", "error", err)
		}
	}
}

func (t *Tray) handleOpenExports() {
	if t.onOpenExports != nil {
		if err := t.onOpenExports(); err != nil {
			t.logger.Error("failed to open exports folder", "error", err)
		}
	}
}

// refresh pulls counts from the catalog and updates the menu titles.
func (t *Tray) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var active, pending int
	if t.repo != nil {
		if counts, err := t.repo.CountJobsByStatus(ctx); err == nil {
			active = counts[catalog.JobStatusRunning]
			pending = counts[catalog.JobStatusPending]
		}
	}

	recordings := -1
	if t.catalogSvc != nil {
		if n, err := t.catalogSvc.CountRecordings(ctx); err == nil {
			recordings = n
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	paused := t.runner != nil && t.runner.IsPaused()
	t.statusItem.SetTitle(statusTitle(paused, active, pending))
	if recordings >= 0 {
		t.recordingsItem.SetTitle(fmt.Sprintf("Recordings: %d", recordings))
	}
}

func statusTitle(paused bool, active, pending int) string {
	switch {
	case paused:
		return "Status: Paused"
	case active > 0 && pending > 0:
		return fmt.Sprintf("Status: Processing (%d queued)", pending)
	case active > 0:
		return "Status: Processing"
	case pending > 0:
		return fmt.Sprintf("Status: %d queued", pending)
	default:
		return "Status: Idle"
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
