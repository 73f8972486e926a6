package timeline

import "math"

// FrameIndex maps scroll progress in [0,1] to a 1-based frame index in [1,n].
// Progress outside the range is clamped; NaN counts as 0.
func FrameIndex(progress float64, n int) int {
	if n < 1 {
		return 1
	}
	p := Clamp(progress)
	i := int(math.Round(1 + p*float64(n-1)))
	if i < 1 {
		return 1
	}
	if i > n {
		return n
	}
	return i
}

// Clamp limits progress to [0,1].
func Clamp(progress float64) float64 {
	if math.IsNaN(progress) || progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}
