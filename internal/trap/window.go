package trap

// Window is a bounded most-recent-first sample history. It is owned by the
// sampling loop; evaluation receives a snapshot, never the live slice. Not
// safe for concurrent mutation, matching the serialized tick cycle.
type Window struct {
	max     int
	samples []Sample
}

// NewWindow constructs a window holding at most max samples. A max of zero
// or less means unbounded.
func NewWindow(max int) *Window {
	return &Window{max: max}
}

// Push prepends the newest sample, evicting the oldest past capacity.
func (w *Window) Push(s Sample) {
	w.samples = append([]Sample{s}, w.samples...)
	if w.max > 0 && len(w.samples) > w.max {
		w.samples = w.samples[:w.max]
	}
}

// Snapshot returns a copy of the window, newest first.
func (w *Window) Snapshot() []Sample {
	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len reports the current number of held samples.
func (w *Window) Len() int {
	return len(w.samples)
}
