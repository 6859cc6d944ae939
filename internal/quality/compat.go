package quality

import "fmt"

// Platform upload limits.
const (
	InstagramMaxBytes = 100 * MB
	TikTokMaxBytes    = 72 * MB
	YouTubeMaxBytes   = 256 * MB
	TwitterMaxBytes   = 512 * MB

	MinShortDuration   = 3.0
	MaxShortDuration   = 60.0
	TwitterMaxDuration = 140.0

	MinFrameRate = 24.0
	MaxFrameRate = 60.0
)

// ReasonCode identifies the first Instagram constraint a recording violates.
type ReasonCode string

const (
	ReasonReady             ReasonCode = "ready"
	ReasonFormat            ReasonCode = "format"
	ReasonSize              ReasonCode = "size"
	ReasonTooShort          ReasonCode = "too_short"
	ReasonTooLong           ReasonCode = "too_long"
	ReasonVariableFramerate ReasonCode = "variable_framerate"
	ReasonFramerateRange    ReasonCode = "framerate_range"
)

// Compatibility holds per-platform verdicts and a human-readable reason for
// the strictest check (Instagram).
type Compatibility struct {
	Instagram  bool       `json:"instagram"`
	TikTok     bool       `json:"tiktok"`
	YouTube    bool       `json:"youtube"`
	Twitter    bool       `json:"twitter"`
	ReasonCode ReasonCode `json:"reason_code"`
	Reason     string     `json:"reason"`
}

// Ready reports whether the recording passed every Instagram constraint.
func (c Compatibility) Ready() bool {
	return c.ReasonCode == ReasonReady
}

// CheckCompatibility evaluates the platform constraints. Size limits are
// inclusive.
func CheckCompatibility(sizeBytes int64, isMP4 bool, duration, fps float64, isConstant bool) Compatibility {
	shortForm := duration >= MinShortDuration && duration <= MaxShortDuration
	fpsInRange := fps >= MinFrameRate && fps <= MaxFrameRate

	c := Compatibility{
		Instagram: isMP4 && sizeBytes <= InstagramMaxBytes && shortForm && isConstant && fpsInRange,
		TikTok:    isMP4 && sizeBytes <= TikTokMaxBytes && shortForm && isConstant,
		YouTube:   sizeBytes <= YouTubeMaxBytes && isConstant,
		Twitter:   sizeBytes <= TwitterMaxBytes && duration <= TwitterMaxDuration && isConstant,
	}

	switch {
	case !isMP4:
		c.ReasonCode = ReasonFormat
		c.Reason = "WebM is not accepted by Instagram or TikTok; MP4 required"
	case sizeBytes > InstagramMaxBytes:
		c.ReasonCode = ReasonSize
		c.Reason = fmt.Sprintf("file is %.1fMB; Instagram allows at most %dMB", float64(sizeBytes)/MB, InstagramMaxBytes/MB)
	case duration < MinShortDuration:
		c.ReasonCode = ReasonTooShort
		c.Reason = fmt.Sprintf("video is %.1fs; at least %.0fs required", duration, MinShortDuration)
	case duration > MaxShortDuration:
		c.ReasonCode = ReasonTooLong
		c.Reason = fmt.Sprintf("video is %.1fs; at most %.0fs allowed", duration, MaxShortDuration)
	case !isConstant:
		c.ReasonCode = ReasonVariableFramerate
		c.Reason = "variable framerate; platforms require a constant framerate"
	case !fpsInRange:
		c.ReasonCode = ReasonFramerateRange
		c.Reason = fmt.Sprintf("framerate %.1ffps outside %.0f-%.0ffps", fps, MinFrameRate, MaxFrameRate)
	default:
		c.ReasonCode = ReasonReady
		c.Reason = "ready"
	}

	return c
}
