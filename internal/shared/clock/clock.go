package clock

import "time"

// Clock supplies the current time. Hold and offer expiry checks all go
// through one Clock so sweeps and tests agree on "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by the wall clock (UTC).
func System() Clock {
	return systemClock{}
}

// Frozen is a settable Clock for tests.
type Frozen struct {
	Current time.Time
}

// NewFrozen returns a Frozen clock starting at t.
func NewFrozen(t time.Time) *Frozen {
	return &Frozen{Current: t}
}

func (f *Frozen) Now() time.Time {
	return f.Current
}

// Advance moves the frozen clock forward by d.
func (f *Frozen) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
