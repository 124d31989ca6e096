package observer

import "time"

// TimeObserver records the wall-clock duration of the last execution,
// matched by name from TimeFeedback so the latter never measures time
// itself.
type TimeObserver struct {
	name    string
	started time.Time
	elapsed time.Duration
}

// NewTimeObserver creates a TimeObserver under the given name.
func NewTimeObserver(name string) *TimeObserver {
	return &TimeObserver{name: name}
}

func (t *TimeObserver) Name() string { return t.name }

func (t *TimeObserver) PreExec() error {
	t.started = time.Now()
	return nil
}

func (t *TimeObserver) PostExec() error {
	t.elapsed = time.Since(t.started)
	return nil
}

// LastExecTime returns the duration of the most recently completed
// execution bracketed by PreExec/PostExec.
func (t *TimeObserver) LastExecTime() time.Duration {
	return t.elapsed
}
