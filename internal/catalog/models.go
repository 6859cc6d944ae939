package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/reelfix/reelfix-agent/internal/processing"
	"github.com/reelfix/reelfix-agent/internal/quality"
)

// Recording is an uploaded clip waiting for, or done with, processing.
type Recording struct {
	ID           string               `json:"id"`
	MIMEType     string               `json:"mime_type"`
	Format       processing.Format    `json:"format"`
	Size         int64                `json:"size"`
	Duration     float64              `json:"duration"`
	Telemetry    processing.Telemetry `json:"telemetry"`
	IsAndroid    bool                 `json:"is_android"`
	OriginalPath string               `json:"-"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Artifact is the stored result of a successful processing job.
type Artifact struct {
	RecordingID   string                 `json:"recording_id"`
	Filename      string                 `json:"filename"`
	Path          string                 `json:"-"`
	MIMEType      string                 `json:"mime_type"`
	Size          int64                  `json:"size"`
	QualityScore  int                    `json:"quality_score"`
	Instagram     bool                   `json:"instagram_compatible"`
	PatchMethod   processing.PatchMethod `json:"patch_method"`
	Metadata      processing.Metadata    `json:"metadata"`
	Compatibility quality.Compatibility  `json:"compatibility"`
	PublishedAt   *time.Time             `json:"published_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

const (
	JobTypeProcess = "process"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	RecordingID string    `json:"recording_id,omitempty"`
	Progress    int       `json:"progress"`
	Stage       string    `json:"stage,omitempty"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Config keys persisted in the config table.
const (
	ConfigDeviceID     = "device_id"
	ConfigRunnerPaused = "runner_paused"
	ConfigAuthToken    = "auth_token"
)

func NewID() string {
	return uuid.NewString()
}
