package domain

import "context"

// FetchResult is the response to a Fetcher.Fetch call.
type FetchResult struct {
	Status int
	Bytes  []byte
}

// Fetcher performs a single synchronous GET against a stem's path. It does
// not retry — retry/backoff is the stem pipeline's concern, not the
// adapter's. Implementations can be backed by net/http, a local file
// store, or (in tests) a canned in-memory map.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (FetchResult, error)
}

// Decoder decodes a compressed audio stream into interleaved stereo
// signed 16-bit PCM, writing up to len(out) samples and returning the
// count actually written. The core calls it exactly once per stem, with
// out sized to the stem's expected sample count, and does not call it
// again to fetch further samples; success is defined by the caller as
// that single call exactly filling the buffer, not by the decoder itself.
type Decoder interface {
	Decode(data []byte, out []int16) (written int, err error)
}

// PNGEncoder encodes an RGBA pixel buffer (row-major, four bytes per
// pixel) into PNG bytes. A narrow adapter so the waveform renderer never
// imports an encoding package directly.
type PNGEncoder interface {
	EncodeRGBA(pixels []byte, width, height int) ([]byte, error)
}

// CompletionCallback is invoked after every background task finishes,
// successful or not. Implementations must be safe to call from arbitrary
// goroutines.
type CompletionCallback func()
