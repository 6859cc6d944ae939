package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/reelfix/reelfix-agent/internal/api"
	"github.com/reelfix/reelfix-agent/internal/catalog"
	"github.com/reelfix/reelfix-agent/internal/cloud"
	"github.com/reelfix/reelfix-agent/internal/config"
	"github.com/reelfix/reelfix-agent/internal/db"
	"github.com/reelfix/reelfix-agent/internal/logging"
	"github.com/reelfix/reelfix-agent/internal/patch"
	"github.com/reelfix/reelfix-agent/internal/playback"
	"github.com/reelfix/reelfix-agent/internal/processing"
	"github.com/reelfix/reelfix-agent/internal/ui"
	"github.com/reelfix/reelfix-agent/internal/webmfix"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.RecordingsDir(), cfg.ArtifactsDir(), cfg.ExportDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting reelfix agent", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo, cfg.AuthToken())
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-56s ║\n", "REELFIX AGENT v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	fixer, probe := webmFixer(cfg, logger)
	webmProbe := webmfix.NewCachedProbe(probe, logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), 5*time.Second)
	caps := webmProbe.Refresh(initCtx)
	initCancel()
	logger.Info("webm fixer detected", "fixer", caps.Fixer, "available", caps.Available, "path", caps.Path)

	pipelineCfg := processing.Config{
		Patcher: patch.NewPatcher(patch.Options{
			Mode:           cfg.LocateMode(),
			TrackTimescale: cfg.TrackTimescale(),
			Logger:         logger,
		}),
		WebM:       fixer,
		Logger:     logger,
		MaxQuality: cfg.MaxQuality(),
	}

	var publisher cloud.Publisher
	if cfg.CloudURL() != "" {
		client := cloud.NewHTTPClient(cfg.CloudURL(), cfg.CloudToken(), logger)
		client.SetDeviceID(deviceID)
		publisher = client
		logger.Info("cloud publish enabled", "base_url", cfg.CloudURL())
	} else {
		publisher = cloud.NewStubPublisher(logger)
	}

	catalogSvc := catalog.NewService(repo, cfg.RecordingsDir(), logger)
	playbackSvc := playback.NewServer(logger)

	runner := catalog.NewRunner(catalogSvc, repo, catalog.RunnerConfig{
		Pipeline:      pipelineCfg,
		ArtifactsDir:  cfg.ArtifactsDir(),
		Publisher:     publisher,
		PollInterval:  cfg.PollInterval(),
		ProgressDelay: cfg.ProgressDelay(),
		Logger:        logger,
	})
	if paused, _ := repo.GetConfig(context.Background(), catalog.ConfigRunnerPaused); paused == "true" {
		runner.Pause()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		CatalogService: catalogSvc,
		PlaybackServer: playbackSvc,
		Repository:     repo,
		Runner:         runner,
		WebMProbe:      webmProbe,
		ExportDir:      cfg.ExportDir(),
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
		Version:        config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			CatalogService: catalogSvc,
			Repository:     repo,
			Runner:         runner,
			Logger:         logger,
			OnOpenExports: func() error {
				return openFolder(cfg.ExportDir())
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// webmFixer picks the WebM duration fixer and the probe that reports on it.
func webmFixer(cfg config.Config, logger *slog.Logger) (webmfix.Fixer, webmfix.ProbeFunc) {
	switch cfg.WebMFixer() {
	case config.WebMFixerCommand:
		cmd := cfg.WebMCommand()
		probe := webmfix.CommandProbe(cmd[0])
		fixer, err := webmfix.NewCommandFixer(webmfix.CommandConfig{
			Path:    cmd[0],
			Args:    cmd[1:],
			Timeout: cfg.WebMTimeout(),
			Logger:  logger,
		})
		if err != nil {
			logger.Warn("webm fixer command unavailable, webm durations will not be fixed", "error", err)
			return webmfix.Noop{}, probe
		}
		return fixer, probe
	case config.WebMFixerNone:
		return webmfix.Noop{}, webmfix.StaticProbe(config.WebMFixerNone, false)
	default:
		return &webmfix.EBMLFixer{Logger: logger}, webmfix.StaticProbe(config.WebMFixerEBML, true)
	}
}

func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	return cmd.Start()
}

func ensureDeviceID(repo catalog.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, catalog.ConfigDeviceID)
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, catalog.ConfigDeviceID, deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

// ensureAuthToken stores the token the API checks requests against. A token
// from the environment always wins over the persisted one.
func ensureAuthToken(repo catalog.Repository, override string) (string, error) {
	ctx := context.Background()

	if override != "" {
		if err := repo.SetConfig(ctx, catalog.ConfigAuthToken, override); err != nil {
			return "", err
		}
		return override, nil
	}

	existing, err := repo.GetConfig(ctx, catalog.ConfigAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, catalog.ConfigAuthToken, token); err != nil {
		return "", err
	}

	return token, nil
}
