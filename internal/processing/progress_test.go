package processing

import (
	"context"
	"testing"
	"time"
)

func TestMultiReporter_FansOutInOrder(t *testing.T) {
	var order []string
	a := ReporterFunc(func(_ context.Context, ev Event) { order = append(order, "a:"+ev.Message) })
	b := ReporterFunc(func(_ context.Context, ev Event) { order = append(order, "b:"+ev.Message) })

	MultiReporter{a, nil, b}.Report(context.Background(), Event{Message: "x"})

	if len(order) != 2 || order[0] != "a:x" || order[1] != "b:x" {
		t.Errorf("order = %v", order)
	}
}

func TestPaced_DelaysBetweenStages(t *testing.T) {
	rep := &recorder{}
	r := Paced(rep, 20*time.Millisecond)

	start := time.Now()
	r.Report(context.Background(), Event{Stage: StageAnalyzing, Percent: 10})
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Report returned after %v, want >= 20ms", elapsed)
	}

	start = time.Now()
	r.Report(context.Background(), Event{Stage: StageDone, Percent: 100})
	if elapsed := time.Since(start); elapsed > 15*time.Millisecond {
		t.Errorf("Done event paced for %v", elapsed)
	}
	if len(rep.events) != 2 {
		t.Errorf("forwarded %d events, want 2", len(rep.events))
	}
}

func TestPaced_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	Paced(NopReporter{}, time.Hour).Report(ctx, Event{Stage: StageAnalyzing})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled Report blocked for %v", elapsed)
	}
}

func TestPaced_ZeroDelayIsPassthrough(t *testing.T) {
	rep := &recorder{}
	if got := Paced(rep, 0); got != Reporter(rep) {
		t.Errorf("Paced(r, 0) = %T, want r", got)
	}
}

func TestProcess_PacedPipelineStaysOrdered(t *testing.T) {
	rep := &recorder{}
	p := New(Config{Reporter: Paced(rep, time.Millisecond)})
	if _, err := p.Process(context.Background(), Recording{Data: []byte{0}, MIMEType: "video/mp4", Duration: 1}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	last := -1
	for _, ev := range rep.events {
		if ev.Percent < last {
			t.Fatalf("percent decreased: %+v", rep.events)
		}
		last = ev.Percent
	}
}
