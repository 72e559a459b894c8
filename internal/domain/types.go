// Package domain holds the plain data types and external-collaborator
// ports shared across the stem mixing engine. Nothing in this package
// touches a registry, a mutex, or a goroutine — it is the vocabulary the
// rest of the module is built from.
package domain

// AudioChunkSamples is the fixed number of stereo frames the real-time
// render path produces per call. A compile-time constant, not a runtime
// option: the caller's audio backend dictates its buffer size once, at
// build time.
const AudioChunkSamples = 1024

// StemInfo is the caller-supplied descriptor for one stem. It is the unit
// of input to Manager.UpdateStemInfo.
type StemInfo struct {
	ID      uint32
	Path    string
	Samples uint32
	Offset  int32
	GainDB  float64
	Pan     float64
}

// AudioChunk is a fixed-size stereo output buffer. The caller owns it and
// must clear it to zero before calling Manager.Render; Render only adds
// into it.
type AudioChunk struct {
	Left  [AudioChunkSamples]float32
	Right [AudioChunkSamples]float32
}

// Interval is a half-open frame range [Start, End) in a stem's local
// sample space.
type Interval struct {
	Start int64
	End   int64
}
