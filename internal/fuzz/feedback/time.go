package feedback

import (
	"time"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// TimeFeedback always returns false; its only job is to cache the named
// TimeObserver's last exec duration so AppendMetadata can stamp it onto the
// accepted testcase. It must never sit to the right of a FastOr whose left
// child can be true, since then IsInteresting (and the cache fill) never
// runs for that input.
type TimeFeedback struct {
	observerName string
	cached       *time.Duration
}

// NewTimeFeedback builds a TimeFeedback reading the TimeObserver named
// observerName.
func NewTimeFeedback(observerName string) *TimeFeedback {
	return &TimeFeedback{observerName: observerName}
}

func (f *TimeFeedback) Name() string { return "time" }
func (f *TimeFeedback) Size() int    { return 1 }

func (f *TimeFeedback) IsInteresting(obs *observer.Set, _ executor.ExitKind) (bool, error) {
	o, err := obs.MustMatch(f.observerName)
	if err != nil {
		return false, err
	}
	to, ok := o.(*observer.TimeObserver)
	if !ok {
		return false, ferr.New(ferr.IllegalState, "observer %q is not a TimeObserver", f.observerName)
	}
	d := to.LastExecTime()
	f.cached = &d
	return false, nil
}

// AppendMetadata stamps the testcase's ExecTime with the cached duration and
// clears the cache. If no duration was ever cached — because this feedback
// sat behind a FastOr whose left sibling short-circuited it — it raises
// IllegalState, the documented FastOr hazard.
func (f *TimeFeedback) AppendMetadata(tc *corpus.Testcase) error {
	if f.cached == nil {
		return ferr.New(ferr.IllegalState,
			"TimeFeedback is missing exec_time when AppendMetadata was called; "+
				"make sure this feedback is not placed behind a FastOr, which can skip it")
	}
	tc.ExecTime = f.cached
	f.cached = nil
	return nil
}

// DiscardMetadata clears the cache without stamping anything.
func (f *TimeFeedback) DiscardMetadata() error {
	f.cached = nil
	return nil
}
