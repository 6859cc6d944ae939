package cloud

import (
	"github.com/reelfix/reelfix-agent/internal/processing"
	"github.com/reelfix/reelfix-agent/internal/quality"
)

// SharePayload announces a processed artifact to the share service. The
// bytes stay local; only the metadata contract is sent.
type SharePayload struct {
	RecordingID   string                `json:"recording_id"`
	DeviceID      string                `json:"device_id,omitempty"`
	Filename      string                `json:"filename"`
	MIMEType      string                `json:"mime_type"`
	Size          int64                 `json:"size"`
	Metadata      processing.Metadata   `json:"metadata"`
	Compatibility quality.Compatibility `json:"compatibility"`
}

type ShareResponse struct {
	ShareID string `json:"share_id"`
	URL     string `json:"url,omitempty"`
}
