package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/reelfix/reelfix-agent/internal/processing"
)

// ErrInvalidRecording is returned by Submit for input the pipeline would
// reject outright.
var ErrInvalidRecording = errors.New("invalid recording")

type CatalogService interface {
	Submit(ctx context.Context, req SubmitRequest) (*Recording, *Job, error)
	GetRecording(ctx context.Context, id string) (*Recording, error)
	GetRecordings(ctx context.Context, limit int) ([]*Recording, error)
	CountRecordings(ctx context.Context) (int, error)
	GetArtifact(ctx context.Context, recordingID string) (*Artifact, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	GetJobs(ctx context.Context, limit int) ([]*Job, error)
	GetLatestJob(ctx context.Context, recordingID string) (*Job, error)
	LoadOriginal(ctx context.Context, rec *Recording) ([]byte, error)
}

// SubmitRequest is one upload from a browser recorder.
type SubmitRequest struct {
	Data      []byte
	MIMEType  string
	Duration  float64
	Telemetry processing.Telemetry
	IsAndroid bool
}

type Service struct {
	repo          Repository
	recordingsDir string
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(repo Repository, recordingsDir string, logger *slog.Logger) *Service {
	return &Service{repo: repo, recordingsDir: recordingsDir, logger: logger, now: time.Now}
}

// Submit stores the original bytes and queues a process job for them.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Recording, *Job, error) {
	if len(req.Data) == 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRecording, processing.ErrEmptyRecording)
	}
	format, err := processing.ParseFormat(req.MIMEType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRecording, err)
	}
	if math.IsNaN(req.Duration) || math.IsInf(req.Duration, 0) || req.Duration <= 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRecording, processing.ErrInvalidDuration)
	}

	now := s.now().UTC()
	rec := &Recording{
		ID:        NewID(),
		MIMEType:  req.MIMEType,
		Format:    format,
		Size:      int64(len(req.Data)),
		Duration:  req.Duration,
		Telemetry: req.Telemetry,
		IsAndroid: req.IsAndroid,
		CreatedAt: now,
	}

	dir := filepath.Join(s.recordingsDir, rec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create recording dir: %w", err)
	}
	rec.OriginalPath = filepath.Join(dir, "original."+format.Ext())
	if err := os.WriteFile(rec.OriginalPath, req.Data, 0o644); err != nil {
		return nil, nil, fmt.Errorf("write original: %w", err)
	}

	if err := s.repo.CreateRecording(ctx, rec); err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}

	job := &Job{
		ID:          NewID(),
		Type:        JobTypeProcess,
		Status:      JobStatusPending,
		RecordingID: rec.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, nil, err
	}

	if s.logger != nil {
		s.logger.Info("recording submitted",
			"recording_id", rec.ID,
			"job_id", job.ID,
			"format", string(format),
			"size", rec.Size,
			"duration", rec.Duration,
		)
	}
	return rec, job, nil
}

func (s *Service) GetRecording(ctx context.Context, id string) (*Recording, error) {
	return s.repo.GetRecording(ctx, id)
}

func (s *Service) GetRecordings(ctx context.Context, limit int) ([]*Recording, error) {
	return s.repo.ListRecordings(ctx, limit)
}

func (s *Service) CountRecordings(ctx context.Context) (int, error) {
	return s.repo.CountRecordings(ctx)
}

func (s *Service) GetArtifact(ctx context.Context, recordingID string) (*Artifact, error) {
	return s.repo.GetArtifact(ctx, recordingID)
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) GetJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) GetLatestJob(ctx context.Context, recordingID string) (*Job, error) {
	return s.repo.GetLatestJobForRecording(ctx, recordingID)
}

// LoadOriginal reads the bytes exactly as they were uploaded.
func (s *Service) LoadOriginal(_ context.Context, rec *Recording) ([]byte, error) {
	data, err := os.ReadFile(rec.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("read original for %s: %w", rec.ID, err)
	}
	return data, nil
}

// Input converts a stored recording back into pipeline input.
func (rec *Recording) Input(data []byte) processing.Recording {
	return processing.Recording{
		Data:      data,
		MIMEType:  rec.MIMEType,
		Duration:  rec.Duration,
		Telemetry: rec.Telemetry,
		IsAndroid: rec.IsAndroid,
	}
}
