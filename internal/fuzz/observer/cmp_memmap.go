package observer

// MemCmpMap is an in-process CmpMap: the harness calls RecordU64 (or the
// narrower width helpers) directly from instrumented comparison call sites,
// the way an in-process target linked against this package would.
type MemCmpMap struct {
	sites    [][]CmpValues
	capacity int
}

// NewMemCmpMap allocates room for numSites comparison sites, each able to
// hold up to capacity recorded comparisons per execution.
func NewMemCmpMap(numSites, capacity int) *MemCmpMap {
	return &MemCmpMap{
		sites:    make([][]CmpValues, numSites),
		capacity: capacity,
	}
}

func (m *MemCmpMap) Len() int { return len(m.sites) }

func (m *MemCmpMap) IsEmpty() bool {
	for _, s := range m.sites {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

func (m *MemCmpMap) Executions(site int) int {
	if site < 0 || site >= len(m.sites) {
		return 0
	}
	return len(m.sites[site])
}

func (m *MemCmpMap) UsableExecutions(site int) int {
	n := m.Executions(site)
	if n > m.capacity {
		return m.capacity
	}
	return n
}

func (m *MemCmpMap) ValuesOf(site, idx int) (CmpValues, bool) {
	if site < 0 || site >= len(m.sites) || idx < 0 || idx >= len(m.sites[site]) {
		return CmpValues{}, false
	}
	return m.sites[site][idx], true
}

func (m *MemCmpMap) Reset() {
	for i := range m.sites {
		m.sites[i] = m.sites[i][:0]
	}
}

// RecordU64 appends a comparison at site, dropping the oldest entries once
// the site holds more than four times the per-site capacity so a hot site
// cannot grow unbounded; UsableExecutions still reports at most capacity.
func (m *MemCmpMap) RecordU64(site int, lhs, rhs uint64) {
	m.record(site, CmpValues{Kind: CmpU64, U64: [2]uint64{lhs, rhs}})
}

// RecordU32 records a 32-bit comparison.
func (m *MemCmpMap) RecordU32(site int, lhs, rhs uint32) {
	m.record(site, CmpValues{Kind: CmpU32, U32: [2]uint32{lhs, rhs}})
}

// RecordBytes records a byte-slice comparison, e.g. memcmp/strcmp operands.
func (m *MemCmpMap) RecordBytes(site int, lhs, rhs []byte) {
	m.record(site, CmpValues{Kind: CmpBytes, Bytes: [2][]byte{lhs, rhs}})
}

func (m *MemCmpMap) record(site int, v CmpValues) {
	if site < 0 || site >= len(m.sites) {
		return
	}
	m.sites[site] = append(m.sites[site], v)
	if len(m.sites[site]) > m.capacity*4 {
		m.sites[site] = m.sites[site][len(m.sites[site])-m.capacity*4:]
	}
}
