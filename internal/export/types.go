package export

import (
	"time"

	"github.com/reelfix/reelfix-agent/internal/processing"
	"github.com/reelfix/reelfix-agent/internal/quality"
)

// Request is the body of an export call. Both fields are optional.
type Request struct {
	OutputDir string `json:"output_dir,omitempty"`
	Name      string `json:"name,omitempty"`
}

type Response struct {
	Status      string `json:"status"`
	OutputPath  string `json:"output_path"`
	SidecarPath string `json:"sidecar_path"`
	Size        int64  `json:"size"`
	Fallback    bool   `json:"fallback"`
}

// Sidecar is written next to the exported media as <stem>.json. Metadata
// and Compatibility are absent when the original was exported because
// processing did not complete.
type Sidecar struct {
	RecordingID   string                 `json:"recordingId"`
	Filename      string                 `json:"filename"`
	MIMEType      string                 `json:"mimeType"`
	Fallback      bool                   `json:"fallback"`
	Reason        string                 `json:"reason,omitempty"`
	Metadata      *processing.Metadata   `json:"metadata,omitempty"`
	Compatibility *quality.Compatibility `json:"compatibility,omitempty"`
	ExportedAt    time.Time              `json:"exportedAt"`
}

// Bundle is one media file plus its sidecar. Data, when non-nil, is written
// instead of the contents of SourcePath.
type Bundle struct {
	SourcePath string
	Data       []byte
	Name       string
	Sidecar    Sidecar
}

type Result struct {
	MediaPath   string
	SidecarPath string
	Size        int64
}
