// Package processing turns a raw browser recording into a shareable
// artifact: it repairs the container duration, scores the result and
// packages it with provenance metadata.
package processing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/reelfix/reelfix-agent/internal/bytebuf"
	"github.com/reelfix/reelfix-agent/internal/logging"
	"github.com/reelfix/reelfix-agent/internal/patch"
	"github.com/reelfix/reelfix-agent/internal/quality"
	"github.com/reelfix/reelfix-agent/internal/webmfix"
)

// Config wires a Pipeline. Zero values select defaults.
type Config struct {
	Patcher  *patch.Patcher
	WebM     webmfix.Fixer
	Reporter Reporter
	Logger   *slog.Logger
	Now      func() time.Time

	FilenamePrefix string
	// MaxQuality appends "_hq" to the filename prefix.
	MaxQuality bool
}

// Pipeline is stateless between runs; Process may be called concurrently.
type Pipeline struct {
	patcher  *patch.Patcher
	webm     webmfix.Fixer
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time
	prefix   string
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		patcher:  cfg.Patcher,
		webm:     cfg.WebM,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
		now:      cfg.Now,
		prefix:   cfg.FilenamePrefix,
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	if p.patcher == nil {
		p.patcher = patch.NewPatcher(patch.Options{Logger: p.logger})
	}
	if p.webm == nil {
		p.webm = webmfix.Noop{}
	}
	if p.reporter == nil {
		p.reporter = NopReporter{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.prefix == "" {
		p.prefix = DefaultFilenamePrefix
	}
	if cfg.MaxQuality {
		p.prefix += MaxQualityFilenameSuffix
	}
	return p
}

// run carries the state of one Process call between stages.
type run struct {
	rec       Recording
	format    Format
	telemetry Telemetry

	data        []byte
	fixed       bool
	method      PatchMethod
	patchResult *patch.Result

	report quality.Report
	compat quality.Compatibility

	percent int
}

// Process runs every stage in order. Duration repair failures degrade the
// result but do not fail the run; invalid input fails it with a
// *PipelineError.
func (p *Pipeline) Process(ctx context.Context, rec Recording) (*Artifact, error) {
	r := &run{rec: rec, method: PatchMethodNone}

	stages := []struct {
		stage Stage
		fn    func(context.Context, *run) error
	}{
		{StageAnalyzing, p.analyze},
		{StageValidatingFramerate, p.validateFramerate},
		{StagePatchingMetadata, p.patchMetadata},
		{StageCheckingCompatibility, p.checkCompatibility},
	}

	for _, s := range stages {
		if err := s.fn(ctx, r); err != nil {
			return nil, p.fail(ctx, r, s.stage, err)
		}
	}

	p.emit(ctx, r, StageFinalizing, 90, "Finalizing video")
	art := p.finalize(r)

	p.emit(ctx, r, StageDone, 100, "Ready to share")
	p.logger.Info("recording processed",
		"filename", art.Filename,
		"format", string(r.format),
		"patch_method", string(r.method),
		"fixed_duration", r.fixed,
		"quality_score", r.report.Score,
		"instagram", r.compat.Instagram,
	)
	return art, nil
}

func (p *Pipeline) emit(ctx context.Context, r *run, stage Stage, percent int, msg string) {
	r.percent = percent
	p.reporter.Report(ctx, Event{Stage: stage, Percent: percent, Message: msg})
}

// fail reports the failure at the last emitted percentage.
func (p *Pipeline) fail(ctx context.Context, r *run, stage Stage, err error) error {
	p.logger.Error("processing failed", "stage", string(stage), "error", err)
	p.reporter.Report(ctx, Event{Stage: StageFailed, Percent: r.percent, Message: err.Error()})
	return &PipelineError{Stage: stage, Err: err}
}

func (p *Pipeline) analyze(ctx context.Context, r *run) error {
	p.emit(ctx, r, StageAnalyzing, 10, "Analyzing recording")

	if len(r.rec.Data) == 0 {
		return ErrEmptyRecording
	}
	f, err := ParseFormat(r.rec.MIMEType)
	if err != nil {
		return err
	}
	d := r.rec.Duration
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}
	r.format = f
	r.data = append([]byte(nil), r.rec.Data...)
	return nil
}

func (p *Pipeline) validateFramerate(ctx context.Context, r *run) error {
	p.emit(ctx, r, StageValidatingFramerate, 25, "Validating framerate")

	r.telemetry = r.rec.Telemetry.Resolve(r.rec.Duration)
	mode := "variable"
	if r.telemetry.IsConstantFramerate {
		mode = "constant"
	}
	p.emit(ctx, r, StageValidatingFramerate, 40,
		fmt.Sprintf("Framerate %.1f fps (%s)", r.telemetry.ActualFrameRate, mode))
	return nil
}

func (p *Pipeline) patchMetadata(ctx context.Context, r *run) error {
	p.emit(ctx, r, StagePatchingMetadata, 60, "Fixing video duration")

	switch r.format {
	case FormatMP4:
		res := p.patcher.PatchMP4Duration(bytebuf.New(r.data), r.rec.Duration)
		r.patchResult = &res
		if res.Any() {
			r.fixed = true
			r.method = PatchMethodMP4
		} else {
			p.logger.Warn("no mp4 duration box patched; using original bytes", "skipped", len(res.Skipped))
		}

	case FormatWebM:
		out, err := p.webm.Fix(ctx, r.data, r.rec.Duration*1000)
		if err != nil {
			p.logger.Warn("webm duration fix failed; using original bytes", "error", err)
			return nil
		}
		if len(out) == 0 {
			p.logger.Warn("webm duration fix returned no data; using original bytes")
			return nil
		}
		r.data = out
		r.fixed = true
		r.method = PatchMethodWebM
	}
	return nil
}

func (p *Pipeline) checkCompatibility(ctx context.Context, r *run) error {
	p.emit(ctx, r, StageCheckingCompatibility, 75, "Checking platform compatibility")

	size := int64(len(r.data))
	isMP4 := r.format == FormatMP4
	t := r.telemetry
	r.report = quality.Score(r.rec.Duration, t.ActualFrameRate, t.IsConstantFramerate, size, isMP4)
	r.compat = quality.CheckCompatibility(size, isMP4, r.rec.Duration, t.ActualFrameRate, t.IsConstantFramerate)
	return nil
}

func (p *Pipeline) finalize(r *run) *Artifact {
	now := p.now()
	t := r.telemetry
	return &Artifact{
		Data:     r.data,
		MIMEType: r.rec.MIMEType,
		Filename: Filename(p.prefix, now, r.format),
		Metadata: Metadata{
			RecordingDuration:   r.rec.Duration,
			IsAndroid:           r.rec.IsAndroid,
			ProcessedAt:         now.UTC(),
			InstagramCompatible: r.compat.Instagram,
			FixedDuration:       r.fixed,
			OriginalSize:        int64(len(r.rec.Data)),
			ProcessedSize:       int64(len(r.data)),
			Format:              r.format,
			TargetFrameRate:     t.TargetFrameRate,
			ActualFrameRate:     t.ActualFrameRate,
			IsConstantFramerate: t.IsConstantFramerate,
			FrameRateVariance:   t.Variance(),
			TotalFrames:         t.TotalFrames,
			QualityScore:        r.report.Score,
			PatchMethod:         r.method,
		},
		Quality:       r.report,
		Compatibility: r.compat,
		Patch:         r.patchResult,
	}
}
