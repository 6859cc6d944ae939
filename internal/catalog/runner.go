package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/reelfix/reelfix-agent/internal/cloud"
	"github.com/reelfix/reelfix-agent/internal/logging"
	"github.com/reelfix/reelfix-agent/internal/processing"
)

// RunnerConfig wires a Runner. Pipeline is a template: each job gets its own
// copy with a reporter that mirrors progress into the jobs table.
type RunnerConfig struct {
	Pipeline      processing.Config
	ArtifactsDir  string
	Publisher     cloud.Publisher
	PollInterval  time.Duration
	ProgressDelay time.Duration
	Logger        *slog.Logger
}

type Runner struct {
	service       *Service
	repo          Repository
	pipeline      processing.Config
	artifactsDir  string
	publisher     cloud.Publisher
	progressDelay time.Duration
	logger        *slog.Logger
	pollInterval  time.Duration
	running       atomic.Bool
	paused        atomic.Bool
}

func NewRunner(service *Service, repo Repository, cfg RunnerConfig) *Runner {
	r := &Runner{
		service:       service,
		repo:          repo,
		pipeline:      cfg.Pipeline,
		artifactsDir:  cfg.ArtifactsDir,
		publisher:     cfg.Publisher,
		progressDelay: cfg.ProgressDelay,
		logger:        cfg.Logger,
		pollInterval:  cfg.PollInterval,
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.pollInterval <= 0 {
		r.pollInterval = 2 * time.Second
	}
	return r
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started", "poll_interval", r.pollInterval.String())

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// processNextJob runs the oldest pending job, if any. It reports whether a
// job was picked up.
func (r *Runner) processNextJob(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}

	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeProcess:
		r.processRecordingJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.failJob(ctx, job.ID, "unknown job type")
	}
	return true
}

func (r *Runner) processRecordingJob(ctx context.Context, job *Job) {
	logger := logging.WithRecordingID(logging.WithJobID(r.logger, job.ID), job.RecordingID)

	rec, err := r.repo.GetRecording(ctx, job.RecordingID)
	if err != nil || rec == nil {
		r.failJob(ctx, job.ID, "recording not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	data, err := r.service.LoadOriginal(ctx, rec)
	if err != nil {
		r.failJob(ctx, job.ID, err.Error())
		return
	}

	cfg := r.pipeline
	cfg.Logger = logger
	cfg.Reporter = processing.Paced(processing.MultiReporter{r.progressReporter(job.ID), r.pipeline.Reporter}, r.progressDelay)

	art, err := processing.New(cfg).Process(ctx, rec.Input(data))
	if err != nil {
		r.failJob(ctx, job.ID, err.Error())
		return
	}

	stored, err := r.storeArtifact(ctx, rec, art)
	if err != nil {
		logger.Error("failed to store artifact", "error", err)
		r.failJob(ctx, job.ID, fmt.Sprintf("store artifact: %v", err))
		return
	}

	r.publish(ctx, logger, stored)

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	logger.Info("process job completed",
		"filename", stored.Filename,
		"quality_score", stored.QualityScore,
		"instagram", stored.Instagram,
	)
}

// progressReporter mirrors pipeline events into the job row.
func (r *Runner) progressReporter(jobID string) processing.Reporter {
	return processing.ReporterFunc(func(ctx context.Context, ev processing.Event) {
		if err := r.repo.UpdateJobProgress(ctx, jobID, ev.Percent, string(ev.Stage), ev.Message); err != nil {
			r.logger.Warn("failed to record job progress", "job_id", jobID, "error", err)
		}
	})
}

func (r *Runner) storeArtifact(ctx context.Context, rec *Recording, art *processing.Artifact) (*Artifact, error) {
	dir := filepath.Join(r.artifactsDir, rec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return nil, err
	}

	stored := &Artifact{
		RecordingID:   rec.ID,
		Filename:      art.Filename,
		Path:          path,
		MIMEType:      art.MIMEType,
		Size:          int64(len(art.Data)),
		QualityScore:  art.Quality.Score,
		Instagram:     art.Compatibility.Instagram,
		PatchMethod:   art.Metadata.PatchMethod,
		Metadata:      art.Metadata,
		Compatibility: art.Compatibility,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.repo.SaveArtifact(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// publish failures are logged; the local artifact is already usable.
func (r *Runner) publish(ctx context.Context, logger *slog.Logger, a *Artifact) {
	if r.publisher == nil {
		return
	}

	_, err := r.publisher.PublishArtifact(ctx, cloud.SharePayload{
		RecordingID:   a.RecordingID,
		Filename:      a.Filename,
		MIMEType:      a.MIMEType,
		Size:          a.Size,
		Metadata:      a.Metadata,
		Compatibility: a.Compatibility,
	})
	if err != nil {
		logger.Warn("artifact publish failed", "error", err)
		return
	}

	now := time.Now().UTC()
	if err := r.repo.MarkArtifactPublished(ctx, a.RecordingID, now); err != nil {
		logger.Warn("failed to mark artifact published", "error", err)
		return
	}
	a.PublishedAt = &now
}

func (r *Runner) failJob(ctx context.Context, jobID, msg string) {
	r.logger.Error("job failed", "job_id", jobID, "error", msg)
	r.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, truncateStr(msg, 512))
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	counts, err := r.repo.CountJobsByStatus(ctx)
	if err != nil {
		return 0
	}
	return counts[JobStatusRunning]
}
