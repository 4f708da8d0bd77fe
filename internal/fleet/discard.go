package fleet

// DiscardLog tallies rows dropped during parsing, keyed by sensor kind. It is
// a per-run value returned alongside parse results and merged upward into the
// run summary; nothing in the pipeline keeps global mutable counters.
type DiscardLog map[SensorKind]int64

// NewDiscardLog returns an empty, ready-to-use log.
func NewDiscardLog() DiscardLog {
	return make(DiscardLog)
}

// Add records n discarded rows for the given kind.
func (d DiscardLog) Add(kind SensorKind, n int64) {
	d[kind] += n
}

// Merge folds another log into this one.
func (d DiscardLog) Merge(other DiscardLog) {
	for kind, n := range other {
		d[kind] += n
	}
}

// Total returns the number of discarded rows across all kinds.
func (d DiscardLog) Total() int64 {
	var total int64
	for _, n := range d {
		total += n
	}
	return total
}
