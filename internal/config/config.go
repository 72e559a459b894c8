// Package config loads runtime tunables for the stem mixing engine from
// the environment. github.com/joho/godotenv populates os.Environ from a
// local .env file (if present) before the process reads it, so local
// development and CI can override defaults without touching code.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Env var names understood by Load.
const (
	EnvFetchRetryCount   = "STEMS_FETCH_RETRY_COUNT"
	EnvFetchRetryBackoff = "STEMS_FETCH_RETRY_BACKOFF_MS"
	EnvWaveformWidth     = "STEMS_WAVEFORM_WIDTH"
	EnvWaveformHeight    = "STEMS_WAVEFORM_HEIGHT"
	EnvSilenceAlpha      = "STEMS_SILENCE_ALPHA"
	EnvSilenceThreshold  = "STEMS_SILENCE_THRESHOLD"
	EnvSilenceMinLength  = "STEMS_SILENCE_MIN_LENGTH"
	EnvBackgroundWorkers = "STEMS_BACKGROUND_WORKERS"
)

// Config holds every tunable the engine exposes, each with a sensible
// default when the corresponding environment variable is absent or
// unparsable.
type Config struct {
	// FetchRetryCount is the total number of GET attempts per stem.
	FetchRetryCount int
	// FetchRetryBackoff is the delay between retry attempts.
	FetchRetryBackoff time.Duration

	// WaveformWidth/WaveformHeight are the default PNG dimensions.
	WaveformWidth  int
	WaveformHeight int
	// SilenceAlpha is the default overlay alpha.
	SilenceAlpha uint8

	// SilenceThreshold/SilenceMinLength are the silence detector defaults.
	SilenceThreshold int16
	SilenceMinLength int64

	// BackgroundWorkers bounds how many pipeline tasks the background
	// task runner executes concurrently. 0 means unbounded.
	BackgroundWorkers int
}

// Default returns the engine's baseline configuration.
func Default() Config {
	return Config{
		FetchRetryCount:   4,
		FetchRetryBackoff: 3 * time.Second,
		WaveformWidth:     4096,
		WaveformHeight:    128,
		SilenceAlpha:      128,
		SilenceThreshold:  400,
		SilenceMinLength:  100_000,
		BackgroundWorkers: 0,
	}
}

// Load reads a .env file (if present, via godotenv) and overlays any of
// the recognized environment variables on top of Default(). A missing or
// malformed .env file is not an error — godotenv.Load returning an error
// just means there was nothing to load.
func Load() Config {
	_ = godotenv.Load()

	cfg := Default()

	if v, ok := intEnv(EnvFetchRetryCount); ok {
		cfg.FetchRetryCount = v
	}
	if v, ok := intEnv(EnvFetchRetryBackoff); ok {
		cfg.FetchRetryBackoff = time.Duration(v) * time.Millisecond
	}
	if v, ok := intEnv(EnvWaveformWidth); ok {
		cfg.WaveformWidth = v
	}
	if v, ok := intEnv(EnvWaveformHeight); ok {
		cfg.WaveformHeight = v
	}
	if v, ok := intEnv(EnvSilenceAlpha); ok {
		cfg.SilenceAlpha = uint8(v)
	}
	if v, ok := intEnv(EnvSilenceThreshold); ok {
		cfg.SilenceThreshold = int16(v)
	}
	if v, ok := intEnv(EnvSilenceMinLength); ok {
		cfg.SilenceMinLength = int64(v)
	}
	if v, ok := intEnv(EnvBackgroundWorkers); ok {
		cfg.BackgroundWorkers = v
	}

	return cfg
}

func intEnv(name string) (int, bool) {
	raw, present := os.LookupEnv(name)
	if !present {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
