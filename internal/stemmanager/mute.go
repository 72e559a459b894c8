package stemmanager

// ToggleMute flips stem id's individual mute flag. If any stem (including
// id itself) is currently soloed, the current audible/muted state of every stem is
// first snapshotted into explicit mute flags and the solo is cleared —
// otherwise toggling mute on a stem that was only silent because of
// someone else's solo would have no audible effect.
func (m *Manager) ToggleMute(id uint32) {
	m.muteMu.RLock()
	soloed := m.soloedStem != nil
	m.muteMu.RUnlock()

	if soloed {
		m.switchToMuteMode()
	}

	m.muteMu.Lock()
	defer m.muteMu.Unlock()
	if _, ok := m.mutedStems[id]; ok {
		delete(m.mutedStems, id)
	} else {
		m.mutedStems[id] = struct{}{}
	}
}

// ToggleSolo makes stem id the sole audible stem, or clears the solo if
// it was already the soloed stem.
func (m *Manager) ToggleSolo(id uint32) {
	m.muteMu.Lock()
	defer m.muteMu.Unlock()

	found := m.soloedStem != nil && *m.soloedStem == id
	delete(m.mutedStems, id)

	if found {
		m.soloedStem = nil
	} else {
		idCopy := id
		m.soloedStem = &idCopy
	}
}

// UnmuteAll clears every individual mute flag and any active solo.
func (m *Manager) UnmuteAll() {
	m.muteMu.Lock()
	defer m.muteMu.Unlock()
	m.mutedStems = make(map[uint32]struct{})
	m.soloedStem = nil
}

// StemMuted reports whether stem id is currently silenced by the
// mute/solo policy: soloed mode mutes everything except the soloed stem,
// otherwise a stem is muted iff its individual flag is set.
func (m *Manager) StemMuted(id uint32) bool {
	m.muteMu.RLock()
	defer m.muteMu.RUnlock()
	return m.stemMutedLocked(id)
}

func (m *Manager) stemMutedLocked(id uint32) bool {
	if m.soloedStem != nil {
		return *m.soloedStem != id
	}
	_, muted := m.mutedStems[id]
	return muted
}

// StemSoloed reports whether stem id is the currently soloed stem.
func (m *Manager) StemSoloed(id uint32) bool {
	m.muteMu.RLock()
	defer m.muteMu.RUnlock()
	return m.soloedStem != nil && *m.soloedStem == id
}

// StemAudible is the negation of StemMuted.
func (m *Manager) StemAudible(id uint32) bool {
	return !m.StemMuted(id)
}

// switchToMuteMode converts the current effective mute/solo state (which
// may include an active solo) into an equivalent set of explicit mute
// flags with no solo active, preserving exactly which stems are audible.
func (m *Manager) switchToMuteMode() {
	m.registryMu.RLock()
	ids := make([]uint32, 0, len(m.stems))
	for id := range m.stems {
		ids = append(ids, id)
	}
	m.registryMu.RUnlock()

	m.muteMu.RLock()
	newMuted := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if m.stemMutedLocked(id) {
			newMuted[id] = struct{}{}
		}
	}
	m.muteMu.RUnlock()

	m.muteMu.Lock()
	m.mutedStems = newMuted
	m.soloedStem = nil
	m.muteMu.Unlock()
}
