package stemmanager

import (
	"context"
	"encoding/base64"
	"time"
)

// runStemProcessing kicks off the fetch -> decode -> silence-detect
// pipeline for a freshly created stem, off the caller's goroutine.
func (m *Manager) runStemProcessing(entry *stemEntry) {
	m.bg.Go(m.ctx, func(ctx context.Context) {
		m.processStem(ctx, entry)
	}, m.notifyComplete)
}

// runWaveformProcessing kicks off a waveform (re)render for a stem whose
// data is already ready, tagged with the ordinal it must still match when
// the render completes for the result to be published.
func (m *Manager) runWaveformProcessing(entry *stemEntry, prevOrdinal uint32) {
	m.bg.Go(m.ctx, func(ctx context.Context) {
		m.processStemWaveform(entry, prevOrdinal)
	}, m.notifyComplete)
}

// processStem fetches a stem's audio with retry, decodes it, runs silence
// detection, and renders its initial waveform.
func (m *Manager) processStem(ctx context.Context, entry *stemEntry) {
	id := entry.id

	var payload []byte
	fetched := false

	for attempt := 0; attempt < m.cfg.FetchRetryCount; attempt++ {
		m.log.Debug("stem %d: fetching %q (attempt %d/%d)", id, entry.info.Path, attempt+1, m.cfg.FetchRetryCount)

		result, err := m.fetcher.Fetch(ctx, entry.info.Path)
		if err == nil && result.Status >= 200 && result.Status <= 299 {
			if entry.deleted.Load() {
				return
			}
			payload = result.Bytes
			fetched = true
			break
		}

		remaining := m.cfg.FetchRetryCount - attempt - 1
		if remaining == 0 {
			m.log.Error("stem %d: fetch failed after all retries", id)
			entry.errored.Store(true)
			return
		}

		m.log.Warn("stem %d: fetch failed, retrying %d more time(s)", id, remaining)

		select {
		case <-time.After(m.cfg.FetchRetryBackoff):
		case <-ctx.Done():
			return
		}

		if entry.deleted.Load() {
			return
		}
	}

	if !fetched {
		return
	}

	m.log.Debug("stem %d: fetch finished, decoding", id)

	samples := make([]int16, 2*entry.info.Samples)
	written, err := m.decoder.Decode(payload, samples)
	if entry.deleted.Load() {
		return
	}
	if err != nil || written != len(samples) {
		m.log.Error("stem %d: decode failed: %v", id, err)
		entry.errored.Store(true)
		return
	}

	m.log.Debug("stem %d: decoded", id)

	intervals := m.silenceDetector.Detect(samples)

	entry.mu.Lock()
	entry.data = samples
	entry.silenceIntervals = intervals
	entry.mu.Unlock()
	entry.dataReady.Store(true)

	m.processStemWaveform(entry, 0)

	m.log.Debug("stem %d: initial waveform generated", id)
}

// processStemWaveform renders a stem's waveform PNG and publishes it only
// if no newer regeneration was requested while this one was rendering.
func (m *Manager) processStemWaveform(entry *stemEntry, prevOrdinal uint32) {
	if !entry.dataReady.Load() {
		m.log.Error("stem %d: waveform requested before data was ready", entry.id)
		return
	}

	entry.mu.Lock()
	offset := entry.info.Offset
	samples := entry.data
	entry.mu.Unlock()

	trackLength := m.length.Load()

	// Always renders with the manager's configured silence alpha; no
	// per-call override.
	png, err := m.renderer.Render(int64(offset), trackLength, samples)
	if err != nil {
		m.log.Error("stem %d: waveform render failed: %v", entry.id, err)
		return
	}

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.waveformOrdinal.Load() == prevOrdinal {
		entry.waveformBase64 = dataURI
		entry.waveformOrdinal.Add(1)
	} else {
		m.log.Debug("stem %d: waveform discarded, obsolete (%d != %d)", entry.id, entry.waveformOrdinal.Load(), prevOrdinal)
	}
}
