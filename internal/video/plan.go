package video

// PlanFrames splits duration*fps frames across stills as evenly as possible.
// The first total%stills stills hold one extra frame, so the counts always sum to the total.
func PlanFrames(duration, fps, stills int) []int {
	if stills <= 0 {
		return nil
	}

	total := max(duration*fps, 0)
	frames := make([]int, stills)
	for i := range frames {
		frames[i] = total / stills
		if i < total%stills {
			frames[i]++
		}
	}
	return frames
}
