package processing

import (
	"fmt"
	"math"
	"mime"
	"strings"
)

// Format is the container of a recording.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// MIMEType returns the canonical MIME type.
func (f Format) MIMEType() string { return "video/" + string(f) }

// ParseFormat maps a MIME type such as "video/webm;codecs=vp9" to a Format.
func ParseFormat(mimeType string) (Format, error) {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	}
	switch base {
	case "video/mp4":
		return FormatMP4, nil
	case "video/webm":
		return FormatWebM, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMIME, mimeType)
}

// Telemetry is the framerate information reported by the recorder. Zero
// values mean the recorder did not report the field.
type Telemetry struct {
	TargetFrameRate     float64 `json:"targetFrameRate,omitempty"`
	ActualFrameRate     float64 `json:"actualFrameRate,omitempty"`
	IsConstantFramerate bool    `json:"isConstantFramerate"`
	TotalFrames         int     `json:"totalFrames,omitempty"`
}

const DefaultTargetFrameRate = 30

// Resolve fills absent fields: the target defaults to 30 fps, the actual
// rate to the target, and the frame count to actual rate times duration.
func (t Telemetry) Resolve(durationSec float64) Telemetry {
	if t.TargetFrameRate <= 0 || math.IsNaN(t.TargetFrameRate) {
		t.TargetFrameRate = DefaultTargetFrameRate
	}
	if t.ActualFrameRate <= 0 || math.IsNaN(t.ActualFrameRate) {
		t.ActualFrameRate = t.TargetFrameRate
	}
	if t.TotalFrames <= 0 {
		t.TotalFrames = int(math.Round(t.ActualFrameRate * durationSec))
	}
	return t
}

// Variance is the absolute difference between actual and target rate.
func (t Telemetry) Variance() float64 {
	return math.Abs(t.ActualFrameRate - t.TargetFrameRate)
}

// Recording is the raw output of a browser recorder. Process never
// modifies Data.
type Recording struct {
	Data      []byte
	MIMEType  string
	Duration  float64 // seconds, measured by the recorder
	Telemetry Telemetry
	IsAndroid bool
}
