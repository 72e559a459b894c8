// Package stemmanager owns the set of stems in the current mix: their
// metadata, decoded PCM, precomputed silence, and rendered waveform PNGs.
// It renders the live mixdown on the audio thread while a background
// pipeline fetches, decodes, and analyzes stems off of it.
package stemmanager

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/iksinskiyt/glissando-stems/internal/bgtask"
	"github.com/iksinskiyt/glissando-stems/internal/config"
	"github.com/iksinskiyt/glissando-stems/internal/domain"
	"github.com/iksinskiyt/glissando-stems/internal/logger"
	"github.com/iksinskiyt/glissando-stems/internal/silence"
	"github.com/iksinskiyt/glissando-stems/internal/waveform"
)

// shortToFloat converts a signed 16-bit PCM sample to the [-1, 1] range.
const shortToFloat = 1.0 / 32768.0

// stemEntry is the manager's internal bookkeeping for one stem: static
// identity plus mutable render/pipeline state. mu guards every field
// below it except where noted.
type stemEntry struct {
	id uint32

	dataReady atomic.Bool
	deleted   atomic.Bool
	errored   atomic.Bool

	waveformOrdinal atomic.Uint32

	mu               sync.Mutex
	info             domain.StemInfo
	gain             float64
	data             []int16
	silenceIntervals []domain.Interval
	waveformBase64   string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a logger used for pipeline diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithConfig overrides the tunables the manager derives its silence
// detector, waveform renderer, fetch retry policy, and background worker
// pool from. Defaults to config.Default() if not given.
func WithConfig(cfg config.Config) Option {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// Manager is the stem registry and mixdown engine.
type Manager struct {
	log *logger.Logger
	cfg config.Config

	fetcher domain.Fetcher
	decoder domain.Decoder

	silenceDetector *silence.Detector
	renderer        *waveform.Renderer
	bg              *bgtask.Runner

	ctx    context.Context
	cancel context.CancelFunc

	registryMu sync.RWMutex
	stems      map[uint32]*stemEntry

	muteMu     sync.RWMutex
	mutedStems map[uint32]struct{}
	soloedStem *uint32

	length atomic.Int64

	completeMu sync.RWMutex
	completeCB domain.CompletionCallback
}

// New creates a Manager. fetcher and decoder are the external
// collaborators the background pipeline uses to turn a stem's path into
// decoded PCM; encoder backs the waveform renderer's PNG output.
func New(fetcher domain.Fetcher, decoder domain.Decoder, encoder domain.PNGEncoder, opts ...Option) *Manager {
	m := &Manager{
		log:        logger.New(logger.LevelOff, nil),
		cfg:        config.Default(),
		fetcher:    fetcher,
		decoder:    decoder,
		stems:      make(map[uint32]*stemEntry),
		mutedStems: make(map[uint32]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.silenceDetector = silence.New(
		silence.WithThreshold(m.cfg.SilenceThreshold),
		silence.WithMinLength(m.cfg.SilenceMinLength),
	)
	m.renderer = waveform.New(encoder,
		waveform.WithOutputSize(m.cfg.WaveformWidth, m.cfg.WaveformHeight),
		waveform.WithSilenceAlpha(m.cfg.SilenceAlpha),
		waveform.WithSilenceDetector(m.silenceDetector),
	)
	m.bg = bgtask.New(bgtask.WithWorkerLimit(m.cfg.BackgroundWorkers), bgtask.WithLogger(m.log))
	m.ctx, m.cancel = context.WithCancel(context.Background())

	return m
}

// Close cancels the context handed to background fetches, which ends any
// pending retry backoff early. Tasks submitted after Close are still
// started. It does not wait for already-running tasks to return; call
// Wait for that.
func (m *Manager) Close() {
	m.cancel()
}

// Wait blocks until every background task submitted so far has returned.
// Intended for tests and graceful shutdown.
func (m *Manager) Wait() {
	m.bg.Wait()
}

// SetBgTaskCompleteCallback installs a callback invoked after every
// background pipeline stage finishes, successful or not.
func (m *Manager) SetBgTaskCompleteCallback(cb domain.CompletionCallback) {
	m.completeMu.Lock()
	defer m.completeMu.Unlock()
	m.completeCB = cb
}

func (m *Manager) notifyComplete() {
	m.completeMu.RLock()
	cb := m.completeCB
	m.completeMu.RUnlock()
	if cb != nil {
		cb()
	}
}

// CountStems returns the number of stems currently registered, including
// ones still mid-pipeline.
func (m *Manager) CountStems() int {
	m.registryMu.RLock()
	defer m.registryMu.RUnlock()
	return len(m.stems)
}

// TrackLength returns the track length last set via SetTrackLength, in
// frames.
func (m *Manager) TrackLength() int64 {
	return m.length.Load()
}

// SetTrackLength updates the track's total length and regenerates the
// waveform of every stem whose data is already ready, since a column's
// sample range depends on the track length.
func (m *Manager) SetTrackLength(samples int64) {
	m.length.Store(samples)

	m.registryMu.RLock()
	entries := make([]*stemEntry, 0, len(m.stems))
	for _, e := range m.stems {
		entries = append(entries, e)
	}
	m.registryMu.RUnlock()

	for _, entry := range entries {
		if !entry.dataReady.Load() {
			continue
		}

		entry.mu.Lock()
		entry.waveformBase64 = ""
		entry.mu.Unlock()
		prevOrdinal := entry.waveformOrdinal.Add(1)

		m.runWaveformProcessing(entry, prevOrdinal)
	}
}

// WaveformOrdinal returns the generation counter for stem id's waveform
// image, or 0 if the stem is unknown. Callers can compare successive
// values to detect when a newly rendered image has superseded a stale
// one already shown to the user.
func (m *Manager) WaveformOrdinal(id uint32) uint32 {
	m.registryMu.RLock()
	entry, ok := m.stems[id]
	m.registryMu.RUnlock()
	if !ok {
		return 0
	}
	return entry.waveformOrdinal.Load()
}

// WaveformDataURI returns the base64 data: URI of stem id's most recently
// rendered waveform PNG, or "" if the stem is unknown, no render has
// completed yet, or a regeneration is pending (the previous image is
// cleared when the track length or the stem's offset changes).
func (m *Manager) WaveformDataURI(id uint32) string {
	m.registryMu.RLock()
	entry, ok := m.stems[id]
	m.registryMu.RUnlock()
	if !ok {
		return ""
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.waveformBase64
}

// StemErrored reports whether stem id's background pipeline ended in an
// unrecoverable error (fetch exhausted its retries, or decode failed).
func (m *Manager) StemErrored(id uint32) bool {
	m.registryMu.RLock()
	entry, ok := m.stems[id]
	m.registryMu.RUnlock()
	if !ok {
		return false
	}
	return entry.errored.Load()
}

// StemReady reports whether stem id has decoded data available to render.
func (m *Manager) StemReady(id uint32) bool {
	m.registryMu.RLock()
	entry, ok := m.stems[id]
	m.registryMu.RUnlock()
	if !ok {
		return false
	}
	return entry.dataReady.Load()
}
