package stemmanager

import "github.com/iksinskiyt/glissando-stems/internal/domain"

// Render additively mixes every audible, ready stem's contribution to the
// AudioChunkSamples-long window starting at firstSample into chunk.
// chunk is not cleared first — callers that want a clean buffer must zero
// it themselves.
func (m *Manager) Render(firstSample int64, chunk *domain.AudioChunk) {
	m.registryMu.RLock()
	defer m.registryMu.RUnlock()

	for id, entry := range m.stems {
		if !entry.dataReady.Load() || entry.deleted.Load() {
			continue
		}
		if !m.StemAudible(id) {
			continue
		}

		entry.mu.Lock()
		offset := int64(entry.info.Offset)
		pan := clampPan(entry.info.Pan)
		gain := entry.gain
		data := entry.data
		intervals := entry.silenceIntervals
		length := int64(entry.info.Samples)
		entry.mu.Unlock()

		stemSample := firstSample - offset

		if stemIsSilent(intervals, stemSample) {
			continue
		}

		gainL := (1 - pan) * gain * shortToFloat
		gainR := (1 + pan) * gain * shortToFloat

		for i := 0; i < domain.AudioChunkSamples; i++ {
			s := stemSample + int64(i)
			if s < 0 || s >= length {
				continue
			}
			chunk.Left[i] += float32(data[2*s]) * float32(gainL)
			chunk.Right[i] += float32(data[2*s+1]) * float32(gainR)
		}
	}
}

func stemIsSilent(intervals []domain.Interval, stemSample int64) bool {
	for _, iv := range intervals {
		if stemSample >= iv.Start && stemSample <= iv.End-domain.AudioChunkSamples {
			return true
		}
	}
	return false
}

func clampPan(pan float64) float64 {
	if pan < -1 {
		return -1
	}
	if pan > 1 {
		return 1
	}
	return pan
}
