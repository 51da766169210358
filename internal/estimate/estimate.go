// Package estimate predicts compressed output sizes for the preview shown
// before a compression run. The numbers are hints, never the size a run
// will actually produce.
package estimate

import "math"

const (
	minFactor   = 0.3
	factorRange = 0.4
)

// Size returns the estimated compressed size in bytes of an image of
// originalSize bytes compressed at quality (nominally 0-100) and scaled by
// sizeRatio (nominally 0-1).
//
// The base factor grows linearly from 0.3 at quality 0 to 0.7 at quality 100.
// Inputs outside the nominal ranges are extrapolated, not clamped.
func Size(originalSize int64, quality, sizeRatio float64) int64 {
	// The explicit conversion keeps the product from being fused into the add.
	baseFactor := minFactor + float64((quality/100)*factorRange)
	return int64(math.Floor(float64(originalSize) * baseFactor * sizeRatio))
}

// Total sums Size over a set of original sizes.
func Total(sizes []int64, quality, sizeRatio float64) int64 {
	var total int64
	for _, s := range sizes {
		total += Size(s, quality, sizeRatio)
	}
	return total
}
