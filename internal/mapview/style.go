package mapview

import (
	"math"
	"time"
)

// MagnitudeTier maps a minimum magnitude to a marker colour.
type MagnitudeTier struct {
	Min   float64
	Color string
}

// MagnitudeTiers is ordered from the highest threshold down; the first tier
// whose minimum is met wins.
var MagnitudeTiers = []MagnitudeTier{
	{Min: 7, Color: "#9c27b0"},
	{Min: 6, Color: "#f44336"},
	{Min: 4, Color: "#ff9800"},
	{Min: 2, Color: "#ffeb3b"},
	{Min: math.Inf(-1), Color: "#4caf50"},
}

// OffshoreRippleColor is the ripple colour of events at sea.
const OffshoreRippleColor = "#4fc3f7"

// Marker geometry.
const (
	MarkerRadiusFloor = 3.0
	ActiveRingOffset  = 3.0
	ActiveRingOpacity = 0.9
	RippleOpacity     = 0.65
)

// Heat circle radius scale: sqrt over magnitude [0, 8] onto [8, 90] pixels.
const (
	heatMagMax    = 8.0
	heatRadiusMin = 8.0
	heatRadiusMax = 90.0
)

// MagnitudeColor returns the colour of the highest tier mag reaches.
func MagnitudeColor(mag float64) string {
	for _, tier := range MagnitudeTiers {
		if mag >= tier.Min {
			return tier.Color
		}
	}
	return MagnitudeTiers[len(MagnitudeTiers)-1].Color
}

// MarkerRadius grows linearly with magnitude and never drops below
// MarkerRadiusFloor.
func MarkerRadius(mag float64) float64 {
	return math.Max(MarkerRadiusFloor, 2+mag*2.5)
}

// DepthOpacity fades deeper events, floored at 0.2.
func DepthOpacity(depth float64) float64 {
	return math.Max(0.2, 1-depth/900)
}

// RippleColor is the magnitude colour on land and a fixed blue offshore.
func RippleColor(mag float64, onLand bool) string {
	if onLand {
		return MagnitudeColor(mag)
	}
	return OffshoreRippleColor
}

// RippleDuration is the period of the ripple animation.
func RippleDuration(mag float64) time.Duration {
	return time.Duration((2 + mag*0.6) * float64(time.Second))
}

// HeatRadius maps magnitude to a heat circle radius. Negative magnitudes
// clamp to the minimum; magnitudes past 8 extrapolate along the same curve.
func HeatRadius(mag float64) float64 {
	m := math.Max(0, mag)
	return heatRadiusMin + (heatRadiusMax-heatRadiusMin)*math.Sqrt(m/heatMagMax)
}

// HeatOpacity is a faint version of DepthOpacity so overlapping circles
// accumulate into density.
func HeatOpacity(depth float64) float64 {
	return math.Max(0.08, DepthOpacity(depth)*0.25)
}

// ZoomScaleFor returns the focus scale used when zooming to an event.
func ZoomScaleFor(mag float64) float64 {
	if mag >= 6 {
		return 6
	}
	return 4
}
