package processing

import (
	"context"
	"time"
)

// Stage is a step of a pipeline run.
type Stage string

const (
	StageAnalyzing             Stage = "analyzing"
	StageValidatingFramerate   Stage = "validating_framerate"
	StagePatchingMetadata      Stage = "patching_metadata"
	StageCheckingCompatibility Stage = "checking_compatibility"
	StageFinalizing            Stage = "finalizing"
	StageDone                  Stage = "done"
	StageFailed                Stage = "failed"
)

// Event is one progress update. Percent never decreases within a run.
type Event struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// Reporter receives progress events. Report is called synchronously from
// the pipeline goroutine before each stage advances.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// NopReporter discards events.
type NopReporter struct{}

func (NopReporter) Report(context.Context, Event) {}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, ev Event)

func (f ReporterFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// MultiReporter fans events out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, ev)
		}
	}
}

type pacedReporter struct {
	next  Reporter
	delay time.Duration
}

// Paced forwards each event to r and then waits delay so a UI can render the
// stage. The wait ends early when ctx is done.
func Paced(r Reporter, delay time.Duration) Reporter {
	if delay <= 0 {
		return r
	}
	return &pacedReporter{next: r, delay: delay}
}

func (p *pacedReporter) Report(ctx context.Context, ev Event) {
	p.next.Report(ctx, ev)
	if ev.Stage == StageDone || ev.Stage == StageFailed {
		return
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
