// Package quality scores processed recordings and checks them against the
// upload constraints of the social platforms they are shared to.
//
// Both functions are pure: they depend only on their arguments.
package quality

// MB is the size unit used by every threshold in this package.
const MB = 1024 * 1024

// Report is a 0-100 quality score and the sub-scores that produced it.
type Report struct {
	Score         int `json:"score"`
	Duration      int `json:"duration"`
	Framerate     int `json:"framerate"`
	Format        int `json:"format"`
	Size          int `json:"size"`
	PlatformBonus int `json:"platform_bonus"`
}

// Score rates a recording by duration, framerate, container and size.
// The total is the sum of the sub-scores capped at 100.
func Score(duration, fps float64, isConstant bool, sizeBytes int64, isMP4 bool) Report {
	var r Report

	switch {
	case duration >= 3 && duration <= 60:
		r.Duration = 20
	case duration >= 2:
		r.Duration = 10
	}

	inRange := fps >= 24 && fps <= 60
	switch {
	case isConstant && fps >= 29 && fps <= 31:
		r.Framerate = 30
	case isConstant && inRange:
		r.Framerate = 25
	case !isConstant && inRange:
		r.Framerate = 15
	default:
		r.Framerate = 5
	}

	if isMP4 {
		r.Format = 20
	} else {
		r.Format = 10
	}

	switch {
	case sizeBytes > 2*MB && sizeBytes < 50*MB:
		r.Size = 15
	case sizeBytes < 100*MB:
		r.Size = 10
	default:
		r.Size = 5
	}

	if isMP4 && isConstant && duration >= 3 && fps >= 24 {
		r.PlatformBonus = 15
	}

	r.Score = min(100, r.Duration+r.Framerate+r.Format+r.Size+r.PlatformBonus)
	return r
}
