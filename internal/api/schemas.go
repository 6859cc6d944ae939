package api

import (
	"time"

	"github.com/reelfix/reelfix-agent/internal/catalog"
	"github.com/reelfix/reelfix-agent/internal/processing"
	"github.com/reelfix/reelfix-agent/internal/quality"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State           string              `json:"state"`
	LastError       string              `json:"last_error,omitempty"`
	RecordingsCount int                 `json:"recordings_count"`
	JobsRunning     int                 `json:"jobs_running"`
	JobsPending     int                 `json:"jobs_pending"`
	JobsFailed      int                 `json:"jobs_failed"`
	ActiveJob       *JobResponse        `json:"active_job,omitempty"`
	WebM            *WebMStatusResponse `json:"webm,omitempty"`
}

type WebMStatusResponse struct {
	Fixer       string `json:"fixer"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Error       string `json:"error,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type SubmitResponse struct {
	JobID       string `json:"job_id"`
	RecordingID string `json:"recording_id"`
}

type JobResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	RecordingID string `json:"recording_id,omitempty"`
	Progress    int    `json:"progress"`
	Stage       string `json:"stage,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type RecordingResponse struct {
	ID        string               `json:"id"`
	MIMEType  string               `json:"mime_type"`
	Format    string               `json:"format"`
	Size      int64                `json:"size"`
	Duration  float64              `json:"duration"`
	Telemetry processing.Telemetry `json:"telemetry"`
	IsAndroid bool                 `json:"is_android"`
	CreatedAt string               `json:"created_at"`
	Job       *JobResponse         `json:"job,omitempty"`
	Artifact  *ArtifactResponse    `json:"artifact,omitempty"`
}

type RecordingsResponse struct {
	Recordings []RecordingResponse `json:"recordings"`
}

type ArtifactResponse struct {
	Filename      string                `json:"filename"`
	MIMEType      string                `json:"mime_type"`
	Size          int64                 `json:"size"`
	QualityScore  int                   `json:"quality_score"`
	Metadata      processing.Metadata   `json:"metadata"`
	Compatibility quality.Compatibility `json:"compatibility"`
	PublishedAt   string                `json:"published_at,omitempty"`
	CreatedAt     string                `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		RecordingID: j.RecordingID,
		Progress:    j.Progress,
		Stage:       j.Stage,
		Message:     j.Message,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
}

func RecordingToResponse(r *catalog.Recording) RecordingResponse {
	return RecordingResponse{
		ID:        r.ID,
		MIMEType:  r.MIMEType,
		Format:    string(r.Format),
		Size:      r.Size,
		Duration:  r.Duration,
		Telemetry: r.Telemetry,
		IsAndroid: r.IsAndroid,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

func ArtifactToResponse(a *catalog.Artifact) ArtifactResponse {
	resp := ArtifactResponse{
		Filename:      a.Filename,
		MIMEType:      a.MIMEType,
		Size:          a.Size,
		QualityScore:  a.QualityScore,
		Metadata:      a.Metadata,
		Compatibility: a.Compatibility,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if a.PublishedAt != nil {
		resp.PublishedAt = a.PublishedAt.Format(time.RFC3339)
	}
	return resp
}
