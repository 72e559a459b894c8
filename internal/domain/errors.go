package domain

import "errors"

// Sentinel errors naming the engine's failure kinds. The stem pipeline
// does not return them: it records fetch and decode failures through the
// stem's error flag and the logger.
var (
	ErrFetchFailed  = errors.New("fetch failed after all retries")
	ErrDecodeFailed = errors.New("decode did not fill the expected sample count")
	ErrCancelled    = errors.New("stem was deleted before the pipeline stage completed")
	ErrUnknownStem  = errors.New("unknown stem id")
	ErrNotReady     = errors.New("stem data is not ready")
)
