package video

import "fmt"

const minShortSide = 720

// QualityWarnings lists the ways a probed video misses the portrait Shorts target.
// An empty result means the video looks as requested.
func QualityWarnings(p ProbeResult, duration, fps int) []string {
	var warnings []string
	if !p.Portrait() {
		warnings = append(warnings, fmt.Sprintf("not portrait (%dx%d)", p.Width, p.Height))
	}
	if min(p.Width, p.Height) < minShortSide {
		warnings = append(warnings, fmt.Sprintf("low resolution (%dx%d)", p.Width, p.Height))
	}
	if p.Frames <= 1 {
		warnings = append(warnings, fmt.Sprintf("static video (%d frames)", p.Frames))
	} else if want := duration * fps; want > 0 && p.Frames < want/2 {
		warnings = append(warnings, fmt.Sprintf("only %d frames, expected about %d", p.Frames, want))
	}
	if duration > 0 && p.Duration > 0 && p.Duration < float64(duration)-1 {
		warnings = append(warnings, fmt.Sprintf("duration %.1fs shorter than %ds", p.Duration, duration))
	}
	return warnings
}
