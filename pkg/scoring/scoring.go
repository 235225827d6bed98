// Package scoring implements the decayed, bounded score maps shared by the
// recommendation memory and the detail segment store. All maps use the same
// constants so recency and cardinality behave identically everywhere.
package scoring

import "sort"

const (
	// Gamma is the multiplicative decay applied before every bump.
	Gamma = 0.9
	// Floor is the weight below which a key is dropped during decay.
	Floor = 0.05
	// MaxEntries is the cardinality cap enforced after every bump.
	MaxEntries = 8
)

// Map holds decayed weights per label.
type Map map[string]float64

// Decay multiplies every weight by Gamma and drops entries below Floor.
// Stale labels fade monotonically and eventually disappear.
func (m Map) Decay() {
	for k, v := range m {
		v *= Gamma
		if v < Floor {
			delete(m, k)
			continue
		}
		m[k] = v
	}
}

// Bump decays the map, adds weight to the key and prunes to MaxEntries.
func (m Map) Bump(key string, weight float64) {
	if key == "" || weight <= 0 {
		return
	}
	m.Decay()
	m[key] += weight
	m.prune()
}

func (m Map) prune() {
	if len(m) <= MaxEntries {
		return
	}
	type kv struct {
		k string
		v float64
	}
	entries := make([]kv, 0, len(m))
	for k, v := range m {
		entries = append(entries, kv{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].v != entries[j].v {
			return entries[i].v > entries[j].v
		}
		return entries[i].k < entries[j].k
	})
	for _, e := range entries[MaxEntries:] {
		delete(m, e.k)
	}
}

// Top returns the argmax label and its weight. Ties break on the
// lexicographically smaller label so results are deterministic.
func (m Map) Top() (string, float64) {
	best := ""
	bestWeight := 0.0
	for k, v := range m {
		if v > bestWeight || (v == bestWeight && (best == "" || k < best)) {
			best = k
			bestWeight = v
		}
	}
	return best, bestWeight
}

// Merge sums the other map into this one without re-decaying either side.
func (m Map) Merge(other Map) {
	for k, v := range other {
		m[k] += v
	}
}

// PruneCounts caps a frequency map at max keys, keeping the highest counts
// with the same ordering as RankedCounts. Pinned keys always survive, so the
// key just incremented cannot lose a count tie against older entries.
func PruneCounts(counts map[string]int, max int, pinned ...string) {
	if len(counts) <= max {
		return
	}
	keep := make(map[string]bool, max)
	for _, k := range pinned {
		if _, ok := counts[k]; ok {
			keep[k] = true
		}
	}
	for _, k := range RankedCounts(counts, len(counts)) {
		if len(keep) >= max {
			break
		}
		keep[k] = true
	}
	for k := range counts {
		if !keep[k] {
			delete(counts, k)
		}
	}
}

// RankedCounts returns up to n keys of a frequency map ordered by count
// descending, key ascending.
func RankedCounts(counts map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	entries := make([]kv, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, kv{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].v != entries[j].v {
			return entries[i].v > entries[j].v
		}
		return entries[i].k < entries[j].k
	})
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, 0, n)
	for _, e := range entries[:n] {
		out = append(out, e.k)
	}
	return out
}
