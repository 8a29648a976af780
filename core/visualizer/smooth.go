package visualizer

// SmoothingFactor is the per-frame blend toward the target height.
const SmoothingFactor = 0.2

const (
	HueMin   = 200.0
	HueRange = 140.0
)

// Smooth moves prev a fixed fraction of the way to target.
func Smooth(prev, target float64) float64 {
	return prev + (target-prev)*SmoothingFactor
}

// Hue maps an extent ratio in [0,1] onto [200, 340] degrees.
func Hue(ratio float64) float64 {
	ratio = max(0, min(1, ratio))
	return HueMin + HueRange*ratio
}
