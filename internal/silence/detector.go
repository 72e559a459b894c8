// Package silence implements the silence detector: a single linear pass
// over a stereo PCM buffer that emits non-overlapping, strictly increasing
// [start, end) frame intervals where both channels stay below an amplitude
// threshold for at least a minimum run length.
package silence

import "github.com/iksinskiyt/glissando-stems/internal/domain"

// Default silence threshold and minimum run length.
const (
	DefaultThreshold = 400
	DefaultMinLength = 100_000
)

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides the absolute-amplitude silence threshold.
func WithThreshold(threshold int16) Option {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithMinLength overrides the minimum run length (in frames) required for
// a silent run to be reported as an interval.
func WithMinLength(minLength int64) Option {
	return func(d *Detector) {
		d.minLength = minLength
	}
}

// Detector finds silent intervals in stereo PCM.
type Detector struct {
	threshold int16
	minLength int64
}

// New creates a Detector with the package defaults, overridden by opts.
func New(opts ...Option) *Detector {
	d := &Detector{
		threshold: DefaultThreshold,
		minLength: DefaultMinLength,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Threshold returns the configured silence amplitude threshold.
func (d *Detector) Threshold() int16 { return d.threshold }

// MinLength returns the configured minimum silent run length, in frames.
func (d *Detector) MinLength() int64 { return d.minLength }

// Detect scans pcm (interleaved stereo int16, 2*N samples for N frames)
// and returns freshly built, non-overlapping, strictly increasing silence
// intervals. Any intervals from a previous call are discarded — the
// result reflects only this pass.
func (d *Detector) Detect(pcm []int16) []domain.Interval {
	totalFrames := int64(len(pcm) / 2)

	var silences []domain.Interval
	silenceStart := int64(0)

	for frame := int64(0); frame < totalFrames; frame++ {
		left := pcm[2*frame]
		right := pcm[2*frame+1]

		isSilent := abs16(left) < int32(d.threshold) && abs16(right) < int32(d.threshold)
		if isSilent {
			continue
		}

		if length := frame - silenceStart; length >= d.minLength {
			silences = append(silences, domain.Interval{Start: silenceStart, End: frame})
		}
		silenceStart = frame + 1
	}

	if length := totalFrames - silenceStart; length >= d.minLength {
		silences = append(silences, domain.Interval{Start: silenceStart, End: totalFrames})
	}

	return silences
}

// abs16 widens to int32 before negating so the full-scale negative sample
// (-32768) doesn't wrap back to itself under int16 negation.
func abs16(v int16) int32 {
	w := int32(v)
	if w < 0 {
		return -w
	}
	return w
}
