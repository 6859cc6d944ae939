package processing

import (
	"fmt"
	"time"

	"github.com/reelfix/reelfix-agent/internal/patch"
	"github.com/reelfix/reelfix-agent/internal/quality"
)

// PatchMethod records how the duration was corrected.
type PatchMethod string

const (
	PatchMethodMP4  PatchMethod = "binary-mp4-fix"
	PatchMethodWebM PatchMethod = "webm-fix"
	PatchMethodNone PatchMethod = "none"
)

// Metadata travels with the artifact to the share and download layer. The
// JSON field names are a fixed contract with that layer.
type Metadata struct {
	RecordingDuration   float64     `json:"recordingDuration"`
	IsAndroid           bool        `json:"isAndroid"`
	ProcessedAt         time.Time   `json:"processedAt"`
	InstagramCompatible bool        `json:"instagramCompatible"`
	FixedDuration       bool        `json:"fixedDuration"`
	OriginalSize        int64       `json:"originalSize"`
	ProcessedSize       int64       `json:"processedSize"`
	Format              Format      `json:"format"`
	TargetFrameRate     float64     `json:"targetFrameRate"`
	ActualFrameRate     float64     `json:"actualFrameRate"`
	IsConstantFramerate bool        `json:"isConstantFramerate"`
	FrameRateVariance   float64     `json:"frameRateVariance"`
	TotalFrames         int         `json:"totalFrames"`
	QualityScore        int         `json:"qualityScore"`
	PatchMethod         PatchMethod `json:"patchMethod"`
}

// Artifact is the result of a successful run.
type Artifact struct {
	Data          []byte
	MIMEType      string
	Filename      string
	Metadata      Metadata
	Quality       quality.Report
	Compatibility quality.Compatibility
	Patch         *patch.Result // nil for WebM
}

const (
	DefaultFilenamePrefix    = "ar_video"
	MaxQualityFilenameSuffix = "_hq"
)

// Filename builds "<prefix>_<epoch-ms>.<ext>".
func Filename(prefix string, at time.Time, f Format) string {
	return fmt.Sprintf("%s_%d.%s", prefix, at.UnixMilli(), f.Ext())
}
