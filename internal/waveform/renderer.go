// Package waveform rasterizes a stem's PCM data (and its silent stretches)
// into an RGBA PNG: one column per horizontal pixel, peak-to-peak range
// drawn as a vertical bar, silent columns darkened by alpha blending a
// translucent black overlay on top.
package waveform

import (
	"github.com/iksinskiyt/glissando-stems/internal/domain"
	"github.com/iksinskiyt/glissando-stems/internal/silence"
)

const (
	sampleMax = 32767
	sampleMin = -32768
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithOutputSize overrides the rendered PNG's pixel dimensions.
func WithOutputSize(width, height int) Option {
	return func(r *Renderer) {
		r.width = width
		r.height = height
	}
}

// WithWaveformColor overrides the RGBA color used to paint sample peaks.
func WithWaveformColor(red, green, blue, alpha uint8) Option {
	return func(r *Renderer) {
		r.colorRed = red
		r.colorGreen = green
		r.colorBlue = blue
		r.colorAlpha = alpha
	}
}

// WithSilenceAlpha overrides the alpha of the black overlay painted over
// silent columns.
func WithSilenceAlpha(alpha uint8) Option {
	return func(r *Renderer) {
		r.silenceAlpha = alpha
	}
}

// WithSilenceDetector overrides the silence.Detector used to find silent
// runs. Useful for rendering with a threshold/min-length different from
// the one the stem manager uses for playback muting.
func WithSilenceDetector(d *silence.Detector) Option {
	return func(r *Renderer) {
		r.detector = d
	}
}

// pixel is a single packed RGBA texel.
type pixel struct {
	red, green, blue, alpha uint8
}

// Renderer rasterizes stem PCM into a waveform PNG.
type Renderer struct {
	width, height int

	colorRed, colorGreen, colorBlue, colorAlpha uint8
	silenceAlpha                                uint8

	detector *silence.Detector
	encoder  domain.PNGEncoder
}

// New creates a Renderer with its default geometry and colors (4096x128,
// opaque white waveform, alpha-128 silence overlay), overridden by opts.
func New(encoder domain.PNGEncoder, opts ...Option) *Renderer {
	r := &Renderer{
		width:        4096,
		height:       128,
		colorRed:     255,
		colorGreen:   255,
		colorBlue:    255,
		colorAlpha:   255,
		silenceAlpha: 128,
		detector:     silence.New(),
		encoder:      encoder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws a waveform PNG for a stem whose decoded samples begin at
// the stem's offset (in frames, relative to the start of the track) and
// whose full track spans totalLength frames. samples is interleaved
// stereo PCM for exactly the stem's own decoded length.
func (r *Renderer) Render(offset int64, totalLength int64, samples []int16) ([]byte, error) {
	image := make([]pixel, r.width*r.height)

	numSamples := int64(len(samples) / 2)

	r.processWaveform(image, offset, totalLength, samples, numSamples)
	r.processSilence(image, offset, totalLength, samples, numSamples)

	pixels := make([]byte, 0, len(image)*4)
	for _, p := range image {
		pixels = append(pixels, p.red, p.green, p.blue, p.alpha)
	}

	return r.encoder.EncodeRGBA(pixels, r.width, r.height)
}

func (r *Renderer) processWaveform(image []pixel, offset, totalLength int64, samples []int16, numSamples int64) {
	startSample := int64(0)

	for x := 0; x < r.width; x++ {
		endSample := r.columnEndSample(x, totalLength)
		hiPeak, lowPeak := r.columnPeaks(startSample, endSample, offset, samples, numSamples)

		hiPx := r.peakToPixel(hiPeak)
		lowPx := r.peakToPixel(lowPeak)

		for y := hiPx; y <= lowPx; y++ {
			image[y*r.width+x] = pixel{r.colorRed, r.colorGreen, r.colorBlue, r.colorAlpha}
		}

		startSample = endSample
	}
}

func (r *Renderer) processSilence(image []pixel, offset, totalLength int64, samples []int16, numSamples int64) {
	column := 0

	if offset >= 0 {
		r.drawSilence(image, totalLength, &column, 0, offset)
	}

	for _, iv := range r.detector.Detect(samples) {
		if iv.End+offset >= 0 {
			start := iv.Start + offset
			if start < 0 {
				start = 0
			}
			r.drawSilence(image, totalLength, &column, start, iv.End+offset)
		}
	}

	if totalLength > numSamples+offset {
		start := numSamples + offset
		if start < 0 {
			start = 0
		}
		r.drawSilence(image, totalLength, &column, start, totalLength)
	}
}

func (r *Renderer) drawSilence(image []pixel, totalLength int64, column *int, silenceStart, silenceEnd int64) {
	columnStart := int64(0)
	if *column > 0 {
		columnStart = r.columnEndSample(*column-1, totalLength)
	}
	columnEnd := r.columnEndSample(*column, totalLength)

	over := pixel{0, 0, 0, r.silenceAlpha}

	for columnEnd < silenceEnd {
		if *column >= r.width {
			break
		}
		if silenceStart <= columnStart {
			for y := 0; y < r.height; y++ {
				blendPixel(&image[y*r.width+*column], over)
			}
		}

		*column++
		columnStart = columnEnd
		columnEnd = r.columnEndSample(*column, totalLength)
	}
}

// blendPixel alpha-composites over on top of src in place.
// https://en.wikipedia.org/wiki/Alpha_compositing
func blendPixel(src *pixel, over pixel) {
	overAlpha := float64(over.alpha) / 255
	srcAlpha := float64(src.alpha) / 255
	alpha := overAlpha + srcAlpha*(1-overAlpha)

	if alpha == 0 {
		src.red, src.green, src.blue, src.alpha = 0, 0, 0, 0
		return
	}

	src.red = uint8((float64(over.red)*overAlpha + float64(src.red)*srcAlpha*(1-overAlpha)) / alpha)
	src.green = uint8((float64(over.green)*overAlpha + float64(src.green)*srcAlpha*(1-overAlpha)) / alpha)
	src.blue = uint8((float64(over.blue)*overAlpha + float64(src.blue)*srcAlpha*(1-overAlpha)) / alpha)
	src.alpha = uint8(round(alpha * 255))
}

func (r *Renderer) columnPeaks(startSample, endSample, offset int64, samples []int16, numSamples int64) (hiPeak, lowPeak int16) {
	if startSample >= endSample {
		return 0, 0
	}

	hiPeak, lowPeak = sampleMin, sampleMax
	for sample := startSample; sample < endSample; sample++ {
		stemSample := sample - offset
		if stemSample < 0 {
			continue
		}
		if stemSample >= numSamples {
			break
		}

		left := samples[2*stemSample]
		right := samples[2*stemSample+1]

		if left > hiPeak {
			hiPeak = left
		}
		if right > hiPeak {
			hiPeak = right
		}
		if left < lowPeak {
			lowPeak = left
		}
		if right < lowPeak {
			lowPeak = right
		}
	}

	return hiPeak, lowPeak
}

func (r *Renderer) columnEndSample(x int, totalLength int64) int64 {
	fraction := float64(x+1) / float64(r.width)
	return int64(round(fraction * float64(totalLength)))
}

// peakToPixel maps a signed 16-bit peak to a row index, clamped to the
// bottom row: an unclamped top edge is fine (row 0 is the loudest
// positive peak), but an unclamped bottom edge indexes past the image.
func (r *Renderer) peakToPixel(peak int16) int {
	row := int(round((32767 - float64(peak)) / 65535 * float64(r.height)))
	if max := r.height - 1; row > max {
		return max
	}
	return row
}

func round(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}
