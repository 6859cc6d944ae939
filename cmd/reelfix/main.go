// Command reelfix repairs the container metadata of a single browser
// recording and writes the result, plus a JSON sidecar, to a directory.
//
//	reelfix -in clip.mp4 -duration 8 -fps 30 -constant -out ./out
//
// When the recording cannot be processed the original bytes are written
// instead and the exit status is 2.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/reelfix/reelfix-agent/internal/bmff"
	"github.com/reelfix/reelfix-agent/internal/config"
	"github.com/reelfix/reelfix-agent/internal/export"
	"github.com/reelfix/reelfix-agent/internal/logging"
	"github.com/reelfix/reelfix-agent/internal/patch"
	"github.com/reelfix/reelfix-agent/internal/processing"
	"github.com/reelfix/reelfix-agent/internal/webmfix"
)

const (
	exitOK       = 0
	exitError    = 1
	exitFallback = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	in         string
	out        string
	name       string
	mimeType   string
	duration   float64
	targetFPS  float64
	actualFPS  float64
	frames     int
	constant   bool
	android    bool
	maxQuality bool
	scan       bool
	timescale  uint
	webmCmd    string
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("reelfix", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.in, "in", "", "recording to process (required)")
	fs.StringVar(&o.out, "out", ".", "output directory")
	fs.StringVar(&o.name, "name", "", "output file stem (default: generated)")
	fs.StringVar(&o.mimeType, "mime", "", "MIME type (default: inferred from the -in extension)")
	fs.Float64Var(&o.duration, "duration", 0, "recording duration in seconds (required)")
	fs.Float64Var(&o.targetFPS, "target-fps", 0, "framerate the recorder aimed for (default 30)")
	fs.Float64Var(&o.actualFPS, "fps", 0, "framerate the recorder achieved (default: target)")
	fs.IntVar(&o.frames, "frames", 0, "total frames recorded (default: fps x duration)")
	fs.BoolVar(&o.constant, "constant", false, "recorder reported a constant framerate")
	fs.BoolVar(&o.android, "android", false, "recording came from an Android device")
	fs.BoolVar(&o.maxQuality, "max-quality", false, "use the max-quality filename prefix")
	fs.BoolVar(&o.scan, "scan", false, "locate MP4 boxes by byte scan instead of walking the tree")
	fs.UintVar(&o.timescale, "track-timescale", config.DefaultTrackTimescale, "tick rate for tkhd durations")
	fs.StringVar(&o.webmCmd, "webm-command", "", "external WebM fixer command (default: built-in)")
	fs.StringVar(&o.logLevel, "log-level", "", "write JSON logs to stderr at this level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.in == "" {
		return nil, errors.New("-in is required")
	}
	if o.mimeType == "" {
		switch strings.ToLower(filepath.Ext(o.in)) {
		case ".mp4":
			o.mimeType = "video/mp4"
		case ".webm":
			o.mimeType = "video/webm"
		default:
			return nil, fmt.Errorf("cannot infer MIME type of %q, pass -mime", o.in)
		}
	}
	if o.timescale == 0 || o.timescale > 1<<32-1 {
		return nil, fmt.Errorf("-track-timescale %d out of range", o.timescale)
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, "reelfix:", err)
		return exitError
	}

	logger := logging.Discard()
	if o.logLevel != "" {
		logger = logging.WithComponent(logging.NewLoggerTo(stderr, o.logLevel), "cli")
	}

	data, err := os.ReadFile(o.in)
	if err != nil {
		fmt.Fprintln(stderr, "reelfix:", err)
		return exitError
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		fmt.Fprintln(stderr, "reelfix:", err)
		return exitError
	}

	fixer, err := webmFixer(o, logger)
	if err != nil {
		fmt.Fprintln(stderr, "reelfix:", err)
		return exitError
	}

	mode := bmff.ModeWalk
	if o.scan {
		mode = bmff.ModeScan
	}
	pipeline := processing.New(processing.Config{
		Patcher: patch.NewPatcher(patch.Options{
			Mode:           mode,
			TrackTimescale: uint32(o.timescale),
			Logger:         logger,
		}),
		WebM:       fixer,
		Reporter:   progressPrinter(stderr),
		Logger:     logger,
		MaxQuality: o.maxQuality,
	})

	art, err := pipeline.Process(ctx, processing.Recording{
		Data:     data,
		MIMEType: o.mimeType,
		Duration: o.duration,
		Telemetry: processing.Telemetry{
			TargetFrameRate:     o.targetFPS,
			ActualFrameRate:     o.actualFPS,
			IsConstantFramerate: o.constant,
			TotalFrames:         o.frames,
		},
		IsAndroid: o.android,
	})
	if err != nil {
		return writeFallback(o, data, err, stdout, stderr)
	}

	name := art.Filename
	if o.name != "" {
		stem := export.SanitizeName(o.name, 120)
		if stem == "" {
			fmt.Fprintf(stderr, "reelfix: -name %q has no usable characters\n", o.name)
			return exitError
		}
		name = stem + filepath.Ext(art.Filename)
	}

	metadata, compat := art.Metadata, art.Compatibility
	res, err := export.Write(o.out, export.Bundle{
		Data: art.Data,
		Name: name,
		Sidecar: export.Sidecar{
			RecordingID:   "cli",
			MIMEType:      art.MIMEType,
			Metadata:      &metadata,
			Compatibility: &compat,
			ExportedAt:    time.Now().UTC(),
		},
	})
	if err != nil {
		fmt.Fprintln(stderr, "reelfix:", err)
		return exitError
	}

	fmt.Fprintf(stderr, "quality %d/100, instagram compatible: %v (%s)\n",
		art.Quality.Score, art.Compatibility.Instagram, art.Compatibility.Reason)
	fmt.Fprintln(stdout, res.MediaPath)
	return exitOK
}

// writeFallback saves the original bytes so the user still has something
// to share.
func writeFallback(o *options, data []byte, cause error, stdout, stderr io.Writer) int {
	fmt.Fprintln(stderr, "reelfix: optimization did not complete:", cause)

	base := filepath.Base(o.in)
	ext := filepath.Ext(base)
	stem := export.SanitizeName(strings.TrimSuffix(base, ext), 120)
	if stem == "" {
		stem = "recording"
	}

	res, err := export.Write(o.out, export.Bundle{
		Data: data,
		Name: stem + "_original" + ext,
		Sidecar: export.Sidecar{
			RecordingID: "cli",
			MIMEType:    o.mimeType,
			Fallback:    true,
			Reason:      cause.Error(),
			ExportedAt:  time.Now().UTC(),
		},
	})
	if err != nil {
		fmt.Fprintln(stderr, "reelfix:", err)
		return exitError
	}
	fmt.Fprintln(stdout, res.MediaPath)
	return exitFallback
}

func webmFixer(o *options, logger *slog.Logger) (webmfix.Fixer, error) {
	fields := strings.Fields(o.webmCmd)
	if len(fields) == 0 {
		return &webmfix.EBMLFixer{Logger: logger}, nil
	}
	return webmfix.NewCommandFixer(webmfix.CommandConfig{
		Path:    fields[0],
		Args:    fields[1:],
		Timeout: config.DefaultWebMTimeout,
		Logger:  logger,
	})
}

func progressPrinter(w io.Writer) processing.Reporter {
	return processing.ReporterFunc(func(_ context.Context, ev processing.Event) {
		fmt.Fprintf(w, "[%3d%%] %s\n", ev.Percent, ev.Message)
	})
}
