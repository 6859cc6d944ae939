package quality

import "testing"

func TestScore_Boundaries(t *testing.T) {
	best := Score(3, 30, true, 5*MB, true)
	if best.Score != 100 {
		t.Errorf("Score(3s, 30fps, constant, 5MB, mp4) = %d, want 100 (%+v)", best.Score, best)
	}

	worst := Score(1, 10, false, 200*MB, false)
	if worst.Score > 30 {
		t.Errorf("Score(1s, 10fps, variable, 200MB, webm) = %d, want <= 30", worst.Score)
	}
}

func TestScore_SubScores(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		fps      float64
		constant bool
		size     int64
		mp4      bool
		want     Report
	}{
		{
			name: "ideal mp4", duration: 8, fps: 30, constant: true, size: 10 * MB, mp4: true,
			want: Report{Score: 100, Duration: 20, Framerate: 30, Format: 20, Size: 15, PlatformBonus: 15},
		},
		{
			name: "2s constant 60fps small", duration: 2, fps: 60, constant: true, size: 1 * MB, mp4: true,
			want: Report{Score: 65, Duration: 10, Framerate: 25, Format: 20, Size: 10, PlatformBonus: 0},
		},
		{
			name: "variable 24fps webm", duration: 30, fps: 24, constant: false, size: 60 * MB, mp4: false,
			want: Report{Score: 55, Duration: 20, Framerate: 15, Format: 10, Size: 10, PlatformBonus: 0},
		},
		{
			name: "long and huge", duration: 120, fps: 25, constant: true, size: 150 * MB, mp4: true,
			want: Report{Score: 75, Duration: 10, Framerate: 25, Format: 20, Size: 5, PlatformBonus: 15},
		},
		{
			name: "exactly 2MB is not above 2MB", duration: 5, fps: 29, constant: true, size: 2 * MB, mp4: true,
			want: Report{Score: 95, Duration: 20, Framerate: 30, Format: 20, Size: 10, PlatformBonus: 15},
		},
		{
			name: "under 2s", duration: 1.5, fps: 120, constant: true, size: 3 * MB, mp4: false,
			want: Report{Score: 30, Duration: 0, Framerate: 5, Format: 10, Size: 15, PlatformBonus: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.duration, tt.fps, tt.constant, tt.size, tt.mp4)
			if got != tt.want {
				t.Errorf("Score() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScore_SubScoresSumToTotal(t *testing.T) {
	durations := []float64{0, 1, 2, 3, 30, 60, 61, 200}
	rates := []float64{10, 24, 29, 30, 31, 45, 60, 90}
	sizes := []int64{0, 2 * MB, 2*MB + 1, 50 * MB, 99 * MB, 100 * MB, 500 * MB}

	for _, d := range durations {
		for _, fps := range rates {
			for _, size := range sizes {
				for _, constant := range []bool{true, false} {
					for _, mp4 := range []bool{true, false} {
						r := Score(d, fps, constant, size, mp4)
						sum := r.Duration + r.Framerate + r.Format + r.Size + r.PlatformBonus
						if r.Score != min(100, sum) {
							t.Fatalf("Score(%v,%v,%v,%v,%v) total %d != capped sum %d", d, fps, constant, size, mp4, r.Score, sum)
						}
						if r.Score < 0 || r.Score > 100 {
							t.Fatalf("score %d out of range", r.Score)
						}
					}
				}
			}
		}
	}
}

func TestCheckCompatibility_InstagramDuration(t *testing.T) {
	if c := CheckCompatibility(10*MB, true, 60, 30, true); !c.Instagram || !c.Ready() {
		t.Errorf("60s: %+v, want instagram ready", c)
	}

	c := CheckCompatibility(10*MB, true, 61, 30, true)
	if c.Instagram {
		t.Error("61s: instagram = true, want false")
	}
	if c.ReasonCode != ReasonTooLong {
		t.Errorf("61s: reason = %s, want %s", c.ReasonCode, ReasonTooLong)
	}
	if !c.YouTube || !c.Twitter {
		t.Errorf("61s: youtube=%v twitter=%v, want both true", c.YouTube, c.Twitter)
	}
}

func TestCheckCompatibility_InstagramSizeLimit(t *testing.T) {
	if c := CheckCompatibility(100*MB, true, 10, 30, true); !c.Instagram {
		t.Errorf("exactly 100MB: %+v, want instagram", c)
	}

	c := CheckCompatibility(100*MB+1, true, 10, 30, true)
	if c.Instagram {
		t.Error("100MB+1: instagram = true, want false")
	}
	if c.ReasonCode != ReasonSize {
		t.Errorf("100MB+1: reason = %s, want %s", c.ReasonCode, ReasonSize)
	}
}

func TestCheckCompatibility_Platforms(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		mp4      bool
		duration float64
		fps      float64
		constant bool
		want     Compatibility
	}{
		{
			name: "all platforms", size: 20 * MB, mp4: true, duration: 15, fps: 30, constant: true,
			want: Compatibility{Instagram: true, TikTok: true, YouTube: true, Twitter: true, ReasonCode: ReasonReady},
		},
		{
			name: "tiktok size limit", size: 80 * MB, mp4: true, duration: 15, fps: 30, constant: true,
			want: Compatibility{Instagram: true, TikTok: false, YouTube: true, Twitter: true, ReasonCode: ReasonReady},
		},
		{
			name: "webm", size: 5 * MB, mp4: false, duration: 15, fps: 30, constant: true,
			want: Compatibility{Instagram: false, TikTok: false, YouTube: true, Twitter: true, ReasonCode: ReasonFormat},
		},
		{
			name: "variable framerate", size: 5 * MB, mp4: true, duration: 15, fps: 30, constant: false,
			want: Compatibility{ReasonCode: ReasonVariableFramerate},
		},
		{
			name: "too short", size: 5 * MB, mp4: true, duration: 2.9, fps: 30, constant: true,
			want: Compatibility{YouTube: true, Twitter: true, ReasonCode: ReasonTooShort},
		},
		{
			name: "framerate out of range", size: 5 * MB, mp4: true, duration: 10, fps: 15, constant: true,
			want: Compatibility{TikTok: true, YouTube: true, Twitter: true, ReasonCode: ReasonFramerateRange},
		},
		{
			name: "twitter too long", size: 5 * MB, mp4: true, duration: 141, fps: 30, constant: true,
			want: Compatibility{YouTube: true, ReasonCode: ReasonTooLong},
		},
		{
			name: "format checked before size", size: 600 * MB, mp4: false, duration: 1, fps: 5, constant: false,
			want: Compatibility{ReasonCode: ReasonFormat},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckCompatibility(tt.size, tt.mp4, tt.duration, tt.fps, tt.constant)
			got.Reason = ""
			if got != tt.want {
				t.Errorf("CheckCompatibility() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheckCompatibility_ReadyReason(t *testing.T) {
	c := CheckCompatibility(5*MB, true, 8, 30, true)
	if c.Reason != "ready" {
		t.Errorf("Reason = %q, want ready", c.Reason)
	}
}
