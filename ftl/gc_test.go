package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/ssdsim/ssd"
)

// Fill three lines, punch 48 holes into the first, collect it.
func TestDoGCReclaimsVictim(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)
	f := ns.ftls[0]
	sp := f.ssd.SP

	writePages(t, ns, 0, sp.PgsPerLine)
	writePages(t, ns, sp.PgsPerLine, sp.PgsPerLine)
	writePages(t, ns, 2*sp.PgsPerLine, sp.PgsPerLine)

	// Overwriting half of line 0's pages demotes it to the victim queue.
	half := sp.PgsPerLine / 2
	writePages(t, ns, 0, half)

	victim := &f.lm.lines[0]
	require.NotZero(t, victim.pos)
	require.Equal(t, int(half), victim.IPC)
	require.Equal(t, int(half), victim.VPC)

	gcLineID := f.gcWP.curline.ID
	freeBefore := f.FreeLines()

	require.True(t, f.doGC(true))

	// The line is back in the free pool, fully reset.
	assert.Equal(t, freeBefore+1, f.FreeLines())
	assert.Zero(t, victim.VPC)
	assert.Zero(t, victim.IPC)
	assert.Zero(t, victim.pos)

	// Reclaimed space funds the refill.
	assert.Equal(t, int(half), f.wfc.creditsToRefill)
	assert.Equal(t, uint64(1), f.GCCount())
	assert.Equal(t, uint64(half), f.GCCopiedPages())

	// Every constituent block was erased.
	for ch := 0; ch < sp.NChs; ch++ {
		for lun := 0; lun < sp.LUNsPerCh; lun++ {
			blk := f.ssd.BlkOf(ssd.NewPPA(ch, lun, 0, victim.ID, 0))
			assert.Equal(t, 1, blk.EraseCnt)
			assert.Zero(t, blk.VPC)
		}
	}

	// Survivors moved through the GC write pointer into the GC line.
	for lpn := half; lpn < sp.PgsPerLine; lpn++ {
		ppa := f.maptbl[lpn]
		require.True(t, ppa.Mapped())
		assert.Equal(t, gcLineID, ppa.Blk(), "lpn %d must relocate into the gc line", lpn)
	}

	checkMapConsistency(t, f)
	checkLineAccounting(t, f)
}

func TestDoGCNoVictim(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)
	f := ns.ftls[0]

	assert.False(t, f.doGC(true))
	assert.Zero(t, f.GCCount())
}

// With GC delay disabled the copies are pure bookkeeping: no NAND
// traffic, no LUN clock movement.
func TestGCDelayDisabled(t *testing.T) {
	clk := &fakeClock{}
	off := false
	cfg := &CoreConfig{
		GCMode:        GCModeGreedy,
		EnableGCDelay: &off,
		Now:           clk.fn(),
	}
	ns, err := NewNamespace(1, ssd.Samsung970Pro, 64*ssd.MB, 1, cfg, immediateSched{})
	require.NoError(t, err)
	f := ns.ftls[0]
	sp := f.ssd.SP

	writePages(t, ns, 0, sp.PgsPerLine)
	writePages(t, ns, 0, sp.PgsPerLine/2)

	before := make(map[ssd.PPA]uint64)
	for ch := 0; ch < sp.NChs; ch++ {
		for lun := 0; lun < sp.LUNsPerCh; lun++ {
			ppa := ssd.NewPPA(ch, lun, 0, 0, 0)
			before[ppa] = f.ssd.LUNOf(ppa).NextAvailTime
		}
	}

	require.True(t, f.doGC(true))

	for ppa, avail := range before {
		assert.Equal(t, avail, f.ssd.LUNOf(ppa).NextAvailTime, "lun clocks must not move")
	}
	checkMapConsistency(t, f)
}

// Credit exhaustion on the write path triggers foreground GC once the
// free pool is at the high-water mark, and the victim's invalid pages
// refill the credits.
func TestForegroundGCTrigger(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)
	f := ns.ftls[0]
	sp := f.ssd.SP

	// Fill until three free lines remain.
	lpn := uint64(0)
	for f.FreeLines() > 3 {
		writePages(t, ns, lpn, sp.PgsPerLine)
		lpn += sp.PgsPerLine
	}
	require.Zero(t, f.GCCount(), "no GC while the pool is healthy")

	// Half-invalidate line 0 so a cheap victim exists.
	writePages(t, ns, 0, sp.PgsPerLine/2)
	victim := &f.lm.lines[0]
	require.Equal(t, int(sp.PgsPerLine/2), victim.IPC)

	// Keep writing; within two more lines the credits run dry with the
	// pool at the threshold and GC must fire.
	for i := 0; i < 3 && f.GCCount() == 0; i++ {
		writePages(t, ns, lpn, sp.PgsPerLine)
		lpn += sp.PgsPerLine
		require.Less(t, lpn, sp.TtPgs-sp.PgsPerLine)
	}

	require.Equal(t, uint64(1), f.GCCount())
	assert.Equal(t, int(sp.PgsPerLine/2), f.wfc.creditsToRefill)
	assert.Greater(t, f.WriteCredits(), 0)

	// Greedy picked the half-empty line and returned it to the pool.
	assert.Zero(t, victim.VPC)
	assert.Zero(t, victim.IPC)
	assert.Zero(t, victim.pos)

	checkMapConsistency(t, f)
	checkLineAccounting(t, f)
}

// Debug mode classifies victims against the hot-region LPN boundary.
func TestHotColdVictimStats(t *testing.T) {
	clk := &fakeClock{}
	cfg := &CoreConfig{
		GCMode:    GCModeGreedy,
		DebugMode: 1,
		Now:       clk.fn(),
	}
	ns, err := NewNamespace(1, ssd.Samsung970Pro, 64*ssd.MB, 1, cfg, immediateSched{})
	require.NoError(t, err)
	f := ns.ftls[0]
	sp := f.ssd.SP

	// Line 0 holds LPNs 0..95, all far below the hot limit. Overwrite a
	// stretch that leaves the first wordline's owners probeable.
	writePages(t, ns, 0, sp.PgsPerLine)
	writePages(t, ns, uint64(sp.PgsPerOneshotPg), sp.PgsPerLine/2)

	require.True(t, f.doGC(true))
	assert.Equal(t, uint64(1), ns.Stats.TotalGCCnt.Load())
	assert.Equal(t, uint64(1), ns.Stats.HotGCCnt.Load())
	assert.Zero(t, ns.Stats.ColdGCCnt.Load())
}

// Victims holding only high LPNs count cold.
func TestHotColdColdRegionVictim(t *testing.T) {
	clk := &fakeClock{}
	cfg := &CoreConfig{
		GCMode:    GCModeGreedy,
		DebugMode: 1,
		Now:       clk.fn(),
	}
	ns, err := NewNamespace(1, ssd.Samsung970Pro, 64*ssd.MB, 1, cfg, immediateSched{})
	require.NoError(t, err)
	f := ns.ftls[0]
	sp := f.ssd.SP

	// Fill up to and past the hot boundary so one line holds only LPNs
	// at or above it.
	coldLine := uint64(HotRegionLPNLimit) / sp.PgsPerLine
	for lpn := uint64(0); lpn <= coldLine*sp.PgsPerLine; lpn += sp.PgsPerLine {
		writePages(t, ns, lpn, sp.PgsPerLine)
	}

	// Invalidate a stretch of the cold line that spares its first
	// wordline.
	base := coldLine * sp.PgsPerLine
	writePages(t, ns, base+uint64(sp.PgsPerOneshotPg), sp.PgsPerLine/2)

	require.True(t, f.doGC(true))
	assert.Equal(t, uint64(1), ns.Stats.ColdGCCnt.Load())
	assert.Zero(t, ns.Stats.HotGCCnt.Load())
}

// A victim with nothing valid left counts hot without probing the rmap.
func TestHotColdFullyInvalidVictim(t *testing.T) {
	clk := &fakeClock{}
	cfg := &CoreConfig{
		GCMode:    GCModeGreedy,
		DebugMode: 1,
		Now:       clk.fn(),
	}
	ns, err := NewNamespace(1, ssd.Samsung970Pro, 64*ssd.MB, 1, cfg, immediateSched{})
	require.NoError(t, err)
	f := ns.ftls[0]
	sp := f.ssd.SP

	writePages(t, ns, 0, sp.PgsPerLine)
	writePages(t, ns, 0, sp.PgsPerLine) // fully invalidate line 0

	require.True(t, f.doGC(true))
	assert.Equal(t, uint64(1), ns.Stats.HotGCCnt.Load())
	assert.Zero(t, f.GCCopiedPages(), "nothing valid to copy")
}
