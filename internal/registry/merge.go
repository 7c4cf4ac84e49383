package registry

import "time"

// Merger accumulates records and keeps the most recently updated one per
// identity key. It is not safe for concurrent use.
type Merger struct {
	index   map[string]int
	records []Record
	stamps  []time.Time
	dropped int
}

// NewMerger creates an empty Merger
func NewMerger() *Merger {
	return &Merger{
		index: make(map[string]int),
	}
}

// Add folds one record into the merger. It reports whether the record is now
// the stored entry for its key.
func (m *Merger) Add(rec Record) bool {
	key, ok := rec.Key()
	if !ok {
		m.dropped++
		return false
	}

	updatedAt := rec.UpdatedAt()
	pos, exists := m.index[key]
	if !exists {
		m.index[key] = len(m.records)
		m.records = append(m.records, rec)
		m.stamps = append(m.stamps, updatedAt)
		return true
	}

	// Equal timestamps keep the existing entry
	if !updatedAt.After(m.stamps[pos]) {
		return false
	}
	m.records[pos] = rec
	m.stamps[pos] = updatedAt
	return true
}

// Len returns the number of distinct keys
func (m *Merger) Len() int {
	return len(m.records)
}

// Dropped returns how many records had no identity key
func (m *Merger) Dropped() int {
	return m.dropped
}

// Records returns the stored entries in order of first key appearance
func (m *Merger) Records() []Record {
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Merge deduplicates records by identity key
func Merge(records []Record) []Record {
	m := NewMerger()
	for _, rec := range records {
		m.Add(rec)
	}
	return m.Records()
}
