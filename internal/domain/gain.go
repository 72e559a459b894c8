package domain

import "math"

// DecibelsToGain converts a decibel value to a linear amplitude gain.
func DecibelsToGain(db float64) float64 {
	return math.Pow(10, db/20)
}
