package ftl

import "sync/atomic"

// HotRegionLPNLimit splits the logical space for the hot/cold victim
// debug statistics: the 150 MB mark of the reference fio workload.
const HotRegionLPNLimit = 38400

// Stats aggregates GC observations across every partition of a
// namespace. Partitions run on independent workers, hence the atomics.
type Stats struct {
	TotalGCCnt atomic.Uint64
	HotGCCnt   atomic.Uint64
	ColdGCCnt  atomic.Uint64

	victimTotalAgeMs atomic.Uint64
	victimChosenCnt  atomic.Uint64
}

func (s *Stats) recordVictimAge(ageMs uint64) {
	s.victimTotalAgeMs.Add(ageMs)
	s.victimChosenCnt.Add(1)
}

// AvgVictimAgeMs returns the mean age of chosen victims, zero before any
// selection.
func (s *Stats) AvgVictimAgeMs() uint64 {
	chosen := s.victimChosenCnt.Load()
	if chosen == 0 {
		return 0
	}
	return s.victimTotalAgeMs.Load() / chosen
}
