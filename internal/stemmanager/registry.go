package stemmanager

import "github.com/iksinskiyt/glissando-stems/internal/domain"

// UpdateStemInfo reconciles the registry against the given authoritative
// stem list: stems no longer present are torn down, stems with changed
// gain/pan/offset are updated in place (invalidating and regenerating
// their waveform when offset moved), and unrecognized ones are created
// and kicked off into the background fetch/decode pipeline.
func (m *Manager) UpdateStemInfo(infos []domain.StemInfo) {
	m.eraseUnusedStems(infos)
	m.updateOrAddStems(infos)
}

func (m *Manager) eraseUnusedStems(infos []domain.StemInfo) {
	wanted := make(map[uint32]struct{}, len(infos))
	for _, info := range infos {
		wanted[info.ID] = struct{}{}
	}

	m.registryMu.RLock()
	var toRemove []uint32
	for id := range m.stems {
		if _, ok := wanted[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	m.registryMu.RUnlock()

	if len(toRemove) == 0 {
		return
	}

	m.registryMu.Lock()
	for _, id := range toRemove {
		if entry, ok := m.stems[id]; ok {
			entry.deleted.Store(true)
			delete(m.stems, id)
		}
	}
	m.registryMu.Unlock()

	m.muteMu.Lock()
	for _, id := range toRemove {
		delete(m.mutedStems, id)
		if m.soloedStem != nil && *m.soloedStem == id {
			m.soloedStem = nil
		}
	}
	m.muteMu.Unlock()
}

func (m *Manager) updateOrAddStems(infos []domain.StemInfo) {
	var toAdd []*stemEntry

	for _, info := range infos {
		m.registryMu.RLock()
		entry, ok := m.stems[info.ID]
		m.registryMu.RUnlock()

		if !ok {
			toAdd = append(toAdd, m.createStemFromInfo(info))
			continue
		}

		entry.mu.Lock()
		if entry.info.GainDB != info.GainDB || entry.info.Pan != info.Pan {
			entry.info.GainDB = info.GainDB
			entry.gain = domain.DecibelsToGain(info.GainDB)
			entry.info.Pan = info.Pan
		}

		offsetChanged := entry.info.Offset != info.Offset
		var prevOrdinal uint32
		if offsetChanged {
			entry.info.Offset = info.Offset
			entry.waveformBase64 = ""
		}
		entry.mu.Unlock()

		if offsetChanged {
			prevOrdinal = entry.waveformOrdinal.Add(1)
			m.notifyComplete()
			m.runWaveformProcessing(entry, prevOrdinal)
		}
	}

	if len(toAdd) == 0 {
		return
	}

	m.registryMu.Lock()
	for _, entry := range toAdd {
		m.stems[entry.id] = entry
	}
	m.registryMu.Unlock()
}

func (m *Manager) createStemFromInfo(info domain.StemInfo) *stemEntry {
	entry := &stemEntry{
		id:   info.ID,
		info: info,
		gain: domain.DecibelsToGain(info.GainDB),
	}

	m.runStemProcessing(entry)

	return entry
}
