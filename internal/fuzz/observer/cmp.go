package observer

// CmpValues holds one comparison's pair of operands, captured at whatever
// width the instrumentation recorded it at. Exactly one of the typed fields
// is meaningful, selected by Kind.
type CmpValues struct {
	Kind  CmpKind
	U8    [2]uint8
	U16   [2]uint16
	U32   [2]uint32
	U64   [2]uint64
	Bytes [2][]byte
}

// CmpKind tags which field of CmpValues is populated.
type CmpKind int

const (
	CmpU8 CmpKind = iota
	CmpU16
	CmpU32
	CmpU64
	CmpBytes
)

// IsNumeric reports whether the pair can be widened to a uint64 pair, i.e.
// it is not a Bytes comparison.
func (v CmpValues) IsNumeric() bool {
	return v.Kind != CmpBytes
}

// ToU64Pair widens a numeric comparison to a pair of uint64s. ok is false
// for Bytes comparisons, which have no single scalar value.
func (v CmpValues) ToU64Pair() (lhs, rhs uint64, ok bool) {
	switch v.Kind {
	case CmpU8:
		return uint64(v.U8[0]), uint64(v.U8[1]), true
	case CmpU16:
		return uint64(v.U16[0]), uint64(v.U16[1]), true
	case CmpU32:
		return uint64(v.U32[0]), uint64(v.U32[1]), true
	case CmpU64:
		return v.U64[0], v.U64[1], true
	default:
		return 0, 0, false
	}
}

// CmpValuesMetadata is the per-execution payload a CmpObserver hands to
// input-to-state mutators: one list of CmpValues per comparison site that
// survived the loop-index filter.
type CmpValuesMetadata struct {
	List []CmpValues
}

// CmpMap is the raw, instrumentation-facing record of comparisons at each
// site for the current execution. A site is a stable index assigned by the
// instrumentation (e.g. a basic block id); Executions reports how many
// comparisons were made at that site during the run.
type CmpMap interface {
	Len() int
	IsEmpty() bool
	Executions(site int) int
	// UsableExecutions caps Executions at whatever capacity the underlying
	// per-site ring buffer can actually hold.
	UsableExecutions(site int) int
	ValuesOf(site, idx int) (CmpValues, bool)
	Reset()
}

// siteLoopThreshold is the minimum number of recorded executions at a site
// before the loop-index heuristic is allowed to fire. Below this a site is
// too short-lived for a monotonic counter pattern to be meaningful.
const siteLoopThreshold = 4

// isLoopIndex detects a comparison site whose operand on either side of the
// pair behaves like a monotonically increasing or decreasing loop counter
// across the site's recorded executions: if such a counter runs for
// essentially the whole site (execs-2 steps or more, allowing two
// discontinuities), the site carries no input-to-state information and is
// dropped rather than recorded.
func isLoopIndex(cm CmpMap, site, execs int) bool {
	if execs <= siteLoopThreshold {
		return false
	}

	var incV0, incV1, decV0, decV1 uint64
	var prev CmpValues
	havePrev := false

	for i := 0; i < execs; i++ {
		v, ok := cm.ValuesOf(site, i)
		if !ok || !v.IsNumeric() {
			continue
		}
		lhs, rhs, _ := v.ToU64Pair()

		if havePrev {
			plhs, prhs, _ := prev.ToU64Pair()
			if lhs == plhs+1 {
				incV0++
			}
			if rhs == prhs+1 {
				incV1++
			}
			if lhs == plhs-1 {
				decV0++
			}
			if rhs == prhs-1 {
				decV1++
			}
		}
		prev = v
		havePrev = true
	}

	threshold := uint64(execs - 2)
	return incV0 >= threshold || incV1 >= threshold || decV0 >= threshold || decV1 >= threshold
}

// CmpObserver walks a CmpMap after an execution and builds the
// CmpValuesMetadata an input-to-state mutator will consume, skipping any
// site that looks like a loop index.
type CmpObserver struct {
	name string
	cm   CmpMap
	meta CmpValuesMetadata
}

// NewCmpObserver wraps a CmpMap under the given name.
func NewCmpObserver(name string, cm CmpMap) *CmpObserver {
	return &CmpObserver{name: name, cm: cm}
}

func (o *CmpObserver) Name() string { return o.name }

// PreExec clears the underlying map so stale comparisons from a previous
// execution never leak into this one.
func (o *CmpObserver) PreExec() error {
	o.cm.Reset()
	o.meta = CmpValuesMetadata{}
	return nil
}

// PostExec rebuilds CmpValuesMetadata from whatever the target recorded
// during this execution, applying the loop-index filter per site.
func (o *CmpObserver) PostExec() error {
	o.meta = CmpValuesMetadata{}
	for site := 0; site < o.cm.Len(); site++ {
		execs := o.cm.UsableExecutions(site)
		if execs == 0 {
			continue
		}
		if isLoopIndex(o.cm, site, execs) {
			continue
		}
		for i := 0; i < execs; i++ {
			if v, ok := o.cm.ValuesOf(site, i); ok {
				o.meta.List = append(o.meta.List, v)
			}
		}
	}
	return nil
}

// Metadata returns the comparison values captured by the last PostExec.
func (o *CmpObserver) Metadata() CmpValuesMetadata {
	return o.meta
}
