// Package config provides configuration management for the Reelfix Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/reelfix/reelfix-agent/internal/bmff"
)

const (
	// Default values
	DefaultPort     = 8797
	DefaultLogLevel = "info"
	DefaultDataDir  = ".reelfix"

	// Environment variable names
	EnvPort       = "REELFIX_PORT"
	EnvLogLevel   = "REELFIX_LOG_LEVEL"
	EnvDataDir    = "REELFIX_DATA_DIR"
	EnvAuthToken  = "REELFIX_AUTH_TOKEN"
	EnvHeadless   = "REELFIX_HEADLESS"
	EnvMaxQuality = "REELFIX_MAX_QUALITY"

	// Processing environment variable names
	EnvTrackTimescale = "REELFIX_TRACK_TIMESCALE"
	EnvLocateMode     = "REELFIX_LOCATE_MODE"
	EnvWebMFixer      = "REELFIX_WEBM_FIXER"
	EnvWebMCommand    = "REELFIX_WEBM_COMMAND"
	EnvWebMTimeout    = "REELFIX_WEBM_TIMEOUT"
	EnvProgressDelay  = "REELFIX_PROGRESS_DELAY"
	EnvPollInterval   = "REELFIX_POLL_INTERVAL"

	// Cloud publish environment variable names
	EnvCloudURL   = "REELFIX_CLOUD_URL"
	EnvCloudToken = "REELFIX_CLOUD_TOKEN"

	// Database filename
	DBFilename = "reelfix.db"

	// Processing defaults
	DefaultTrackTimescale = 1000
	DefaultWebMTimeout    = 60 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// WebM fixer kinds.
const (
	WebMFixerEBML    = "ebml"
	WebMFixerCommand = "command"
	WebMFixerNone    = "none"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	RecordingsDir() string
	ArtifactsDir() string
	ExportDir() string
	AuthToken() string
	Headless() bool
	MaxQuality() bool
	TrackTimescale() uint32
	LocateMode() bmff.Mode
	WebMFixer() string
	WebMCommand() []string
	WebMTimeout() time.Duration
	ProgressDelay() time.Duration
	PollInterval() time.Duration
	CloudURL() string
	CloudToken() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	authToken  string
	headless   bool
	maxQuality bool

	trackTimescale uint32
	locateMode     bmff.Mode
	webmFixer      string
	webmCommand    []string
	webmTimeout    time.Duration
	progressDelay  time.Duration
	pollInterval   time.Duration

	cloudURL   string
	cloudToken string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		trackTimescale: DefaultTrackTimescale,
		locateMode:     bmff.ModeWalk,
		webmFixer:      WebMFixerEBML,
		webmTimeout:    DefaultWebMTimeout,
		pollInterval:   DefaultPollInterval,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.authToken = os.Getenv(EnvAuthToken)

	var err error
	if cfg.headless, err = envBool(EnvHeadless); err != nil {
		return nil, err
	}
	if cfg.maxQuality, err = envBool(EnvMaxQuality); err != nil {
		return nil, err
	}

	if ts := os.Getenv(EnvTrackTimescale); ts != "" {
		v, err := strconv.ParseUint(ts, 10, 32)
		if err != nil || v == 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvTrackTimescale)
		}
		cfg.trackTimescale = uint32(v)
	}

	if m := os.Getenv(EnvLocateMode); m != "" {
		mode, err := bmff.ParseMode(m)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvLocateMode, err)
		}
		cfg.locateMode = mode
	}

	if f := os.Getenv(EnvWebMFixer); f != "" {
		switch strings.ToLower(f) {
		case WebMFixerEBML, WebMFixerCommand, WebMFixerNone:
			cfg.webmFixer = strings.ToLower(f)
		default:
			return nil, fmt.Errorf("invalid %s: %q (want ebml, command or none)", EnvWebMFixer, f)
		}
	}

	cfg.webmCommand = strings.Fields(os.Getenv(EnvWebMCommand))
	if cfg.webmFixer == WebMFixerCommand && len(cfg.webmCommand) == 0 {
		return nil, fmt.Errorf("%s=command requires %s", EnvWebMFixer, EnvWebMCommand)
	}

	if cfg.webmTimeout, err = envDuration(EnvWebMTimeout, cfg.webmTimeout); err != nil {
		return nil, err
	}
	if cfg.progressDelay, err = envDuration(EnvProgressDelay, 0); err != nil {
		return nil, err
	}
	if cfg.pollInterval, err = envDuration(EnvPollInterval, cfg.pollInterval); err != nil {
		return nil, err
	}
	if cfg.pollInterval <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", EnvPollInterval)
	}

	cfg.cloudURL = strings.TrimRight(os.Getenv(EnvCloudURL), "/")
	cfg.cloudToken = os.Getenv(EnvCloudToken)

	return cfg, nil
}

func envBool(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", name)
	}
	return d, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// RecordingsDir holds the original uploads, one directory per recording.
func (c *EnvConfig) RecordingsDir() string {
	return filepath.Join(c.dataDir, "recordings")
}

// ArtifactsDir holds processed artifacts, one directory per recording.
func (c *EnvConfig) ArtifactsDir() string {
	return filepath.Join(c.dataDir, "artifacts")
}

// ExportDir is the default destination for exports.
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// AuthToken returns a fixed API bearer token. When empty the agent generates
// one and keeps it in the database.
func (c *EnvConfig) AuthToken() string {
	return c.authToken
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) MaxQuality() bool {
	return c.maxQuality
}

func (c *EnvConfig) TrackTimescale() uint32 {
	return c.trackTimescale
}

func (c *EnvConfig) LocateMode() bmff.Mode {
	return c.locateMode
}

// WebMFixer returns one of ebml, command or none.
func (c *EnvConfig) WebMFixer() string {
	return c.webmFixer
}

// WebMCommand returns the external fixer binary followed by its arguments.
func (c *EnvConfig) WebMCommand() []string {
	return c.webmCommand
}

func (c *EnvConfig) WebMTimeout() time.Duration {
	return c.webmTimeout
}

// ProgressDelay is the pause after each progress event; zero disables pacing.
func (c *EnvConfig) ProgressDelay() time.Duration {
	return c.progressDelay
}

func (c *EnvConfig) PollInterval() time.Duration {
	return c.pollInterval
}

func (c *EnvConfig) CloudURL() string {
	return c.cloudURL
}

func (c *EnvConfig) CloudToken() string {
	return c.cloudToken
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
