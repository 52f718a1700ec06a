package report

// Tracker enforces last-request-wins across concurrent fetches and keeps at
// most one realtime poll outstanding. It is driven from the UI loop only and
// does no locking.
type Tracker struct {
	seq     uint64
	pending int
	polling bool
}

// Start registers a new fetch and returns its sequence number. Any result
// carrying an older number is stale from now on.
func (t *Tracker) Start() uint64 {
	t.seq++
	t.pending++
	return t.seq
}

// StartPoll registers a realtime poll unless a poll or any other fetch is
// still outstanding, in which case the tick is skipped.
func (t *Tracker) StartPoll() (uint64, bool) {
	if t.polling || t.pending > 0 {
		return 0, false
	}
	t.polling = true
	return t.Start(), true
}

// Finish records that the fetch seq has returned and reports whether its
// result is the latest and should be applied.
func (t *Tracker) Finish(seq uint64, poll bool) bool {
	if t.pending > 0 {
		t.pending--
	}
	if poll {
		t.polling = false
	}
	return seq == t.seq
}

// Latest returns the most recently issued sequence number.
func (t *Tracker) Latest() uint64 {
	return t.seq
}

// InFlight reports whether any fetch is outstanding.
func (t *Tracker) InFlight() bool {
	return t.pending > 0
}
