package tokenmanager

// tokenMap is the read-only, ordered mapping from a caller's identifier
// to its row/slot pair. Built once at Start and never mutated
// afterwards.
type tokenMap[T Identifier] struct {
	order []T
	index map[T]int
	rows  []*row
	slots []*slot
}

func newTokenMap[T Identifier](groups []ManagedTokenGroup[T]) (*tokenMap[T], error) {
	tm := &tokenMap[T]{index: make(map[T]int)}

	for _, group := range groups {
		refreshThreshold := group.RefreshThreshold
		if refreshThreshold == 0 {
			refreshThreshold = DefaultRefreshThreshold
		}
		warningThreshold := group.WarningThreshold
		if warningThreshold == 0 {
			warningThreshold = DefaultWarningThreshold
		}

		for _, mt := range group.ManagedTokens {
			if _, exists := tm.index[mt.TokenID]; exists {
				return nil, duplicateTokenIDError(mt.TokenID.String())
			}
			idx := len(tm.rows)
			tm.index[mt.TokenID] = idx
			tm.order = append(tm.order, mt.TokenID)
			tm.rows = append(tm.rows, newRow(mt.TokenID.String(), mt.Scopes, refreshThreshold, warningThreshold, group.Provider))
			tm.slots = append(tm.slots, newSlot(mt.TokenID.String()))
		}
	}

	return tm, nil
}

func (tm *tokenMap[T]) lookup(id T) (int, bool) {
	idx, ok := tm.index[id]
	return idx, ok
}
