package webmfix

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// Capabilities describes which WebM fixer the agent can use.
type Capabilities struct {
	Fixer     string    `json:"fixer"`
	Available bool      `json:"available"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}

// ProbeFunc checks fixer availability.
type ProbeFunc func(ctx context.Context) Capabilities

// CommandProbe returns a ProbeFunc that resolves an external fixer binary.
func CommandProbe(name string) ProbeFunc {
	return func(ctx context.Context) Capabilities {
		caps := Capabilities{Fixer: "command", ProbedAt: time.Now()}
		p, err := resolveCommand(name)
		if err != nil {
			caps.Error = err.Error()
			return caps
		}
		caps.Available = true
		caps.Path = p
		return caps
	}
}

// StaticProbe reports a fixer whose availability never changes, such as the
// in-process EBML fixer.
func StaticProbe(name string, available bool) ProbeFunc {
	return func(ctx context.Context) Capabilities {
		return Capabilities{Fixer: name, Available: available, ProbedAt: time.Now()}
	}
}

// CachedProbe caches probe results with a TTL so status requests do not
// hit PATH lookups every time.
type CachedProbe struct {
	probe  ProbeFunc
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedProbe(probe ProbeFunc, logger *slog.Logger) *CachedProbe {
	return &CachedProbe{
		probe:  probe,
		ttl:    defaultProbeTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (p *CachedProbe) Get(ctx context.Context) Capabilities {
	p.mu.RLock()
	if p.cached != nil && time.Since(p.cached.ProbedAt) < p.ttl {
		caps := *p.cached
		p.mu.RUnlock()
		return caps
	}
	p.mu.RUnlock()

	return p.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (p *CachedProbe) Refresh(ctx context.Context) Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()

	caps := p.probe(ctx)
	if !caps.Available {
		p.logger.Warn("webm fixer unavailable", "fixer", caps.Fixer, "error", caps.Error)
	}
	p.cached = &caps
	return caps
}

// Invalidate clears the cached result.
func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
