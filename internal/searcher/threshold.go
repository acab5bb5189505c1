package searcher

import (
	"strings"
	"sync"
)

// maxThresholdDrop is the upper bound on how far the adaptive
// threshold may fall below the configured default.
const maxThresholdDrop = 0.2

// perSignalDrop is the share of maxThresholdDrop each of the three
// independent signals (query brevity, empty-history, rare tokens)
// contributes at its maximum. Three signals, evenly split, summed and
// clamped to maxThresholdDrop.
const perSignalDrop = maxThresholdDrop / 3

// shortQueryTokens is the token count at or below which a query is
// considered "short" for the brevity signal.
const shortQueryTokens = 2

// rareTokenMinLen is the rune length at or above which a token counts
// as "uncommon" for the rare-token signal: long identifiers and
// compound symbol names are the case the signal is meant to catch.
const rareTokenMinLen = 12

// commonWords are excluded from the rare-token signal even when long,
// so an ordinary English query doesn't trip it by accident.
var commonWords = map[string]bool{
	"function": true, "implementation": true, "configuration": true,
	"application": true, "authentication": true, "documentation": true,
}

// queryHistory is the bounded record of recent queries and whether
// they returned any results, used only to inform the adaptive
// threshold. Removing it changes nothing beyond the threshold effect
// it drives — it carries no other state.
type queryHistory struct {
	mu       sync.Mutex
	capacity int
	order    []string
	empty    map[string]bool
}

func newQueryHistory(capacity int) *queryHistory {
	if capacity <= 0 {
		capacity = 200
	}
	return &queryHistory{capacity: capacity, empty: make(map[string]bool)}
}

// record notes whether normalizedQuery returned any results this call,
// evicting the oldest entry once capacity is exceeded.
func (h *queryHistory) record(normalizedQuery string, gotResults bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, seen := h.empty[normalizedQuery]; !seen {
		h.order = append(h.order, normalizedQuery)
		if len(h.order) > h.capacity {
			oldest := h.order[0]
			h.order = h.order[1:]
			delete(h.empty, oldest)
		}
	}
	h.empty[normalizedQuery] = !gotResults
}

// wasEmpty reports whether normalizedQuery's most recent recorded run
// returned zero results. An unseen query counts as empty: a query with
// no history has no prior signal that this threshold works.
func (h *queryHistory) wasEmpty(normalizedQuery string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	empty, seen := h.empty[normalizedQuery]
	return !seen || empty
}

// adaptiveThreshold computes the effective similarity
// floor: base minus a drop that grows with query brevity, empty prior
// results for this exact query, and the presence of uncommon tokens,
// clamped so the floor never falls below zero nor the drop exceeds
// maxThresholdDrop.
func adaptiveThreshold(base float64, normalizedQuery string, history *queryHistory) float64 {
	tokens := strings.Fields(normalizedQuery)

	drop := 0.0
	if len(tokens) <= shortQueryTokens {
		drop += perSignalDrop
	}
	if history != nil && history.wasEmpty(normalizedQuery) {
		drop += perSignalDrop
	}
	if hasRareToken(tokens) {
		drop += perSignalDrop
	}
	if drop > maxThresholdDrop {
		drop = maxThresholdDrop
	}

	threshold := base - drop
	if threshold < 0 {
		threshold = 0
	}
	return threshold
}

// hasRareToken reports whether any token looks like an uncommon
// identifier: long, and not one of the ordinary English words that
// happen to also be long.
func hasRareToken(tokens []string) bool {
	for _, t := range tokens {
		lower := strings.ToLower(t)
		if len([]rune(t)) >= rareTokenMinLen && !commonWords[lower] {
			return true
		}
	}
	return false
}
