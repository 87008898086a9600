package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/ssdsim/nvme"
	"github.com/newhook/ssdsim/ssd"
)

// Writing the same LPN twice leaves exactly one valid and one invalid
// page, with the old page's line charged one invalid page.
func TestOverwriteSameLPN(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)
	f := ns.ftls[0]

	writePages(t, ns, 0, 1)
	ppa1 := f.maptbl[0]
	require.True(t, ppa1.Mapped())

	writePages(t, ns, 0, 1)
	ppa2 := f.maptbl[0]
	require.True(t, ppa2.Mapped())
	require.NotEqual(t, ppa1, ppa2)

	assert.Equal(t, ssd.PgInvalid, f.ssd.PageOf(ppa1).Status)
	assert.Equal(t, ssd.PgValid, f.ssd.PageOf(ppa2).Status)

	oldLine := f.lineOf(ppa1)
	assert.Equal(t, 1, oldLine.IPC)
	// The old line is still the open user line here, not yet a victim.
	assert.Same(t, f.wp.curline, oldLine)
	assert.Zero(t, oldLine.pos)

	// The stale reverse mapping is gone.
	assert.Equal(t, ssd.InvalidLPN, f.rmap[f.ssd.SP.PageIndex(ppa1)])

	checkMapConsistency(t, f)
	checkLineAccounting(t, f)
}

// Sequentially filling exactly one line moves it to the full list with
// no GC and no invalid pages.
func TestSequentialFillOneLine(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)
	f := ns.ftls[0]
	sp := f.ssd.SP

	line := f.wp.curline
	writePages(t, ns, 0, sp.PgsPerLine)

	assert.Equal(t, 1, f.FullLines())
	assert.Equal(t, 0, f.VictimLines())
	assert.Zero(t, f.GCCount())
	assert.Equal(t, int(sp.PgsPerLine), line.VPC)
	assert.Zero(t, line.IPC)
	assert.NotSame(t, line, f.wp.curline)

	checkMapConsistency(t, f)
	checkLineAccounting(t, f)
}

// Reading an unwritten range is not an error; it simply costs nothing.
func TestReadUnmappedSkipped(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)

	ret := readPages(t, ns, 0, 8)
	assert.Equal(t, nvme.SCSuccess, ret.Status)
	assert.Zero(t, ret.NsecsTarget, "no NAND op may be issued for unmapped LPNs")
}

func TestReadOutOfRange(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)
	sp := ns.ftls[0].ssd.SP

	cmd := &nvme.Command{
		Opcode: nvme.CmdRead,
		SLBA:   sp.TtPgs * uint64(sp.SecsPerPg),
		Length: 7,
	}
	var ret nvme.Result
	assert.False(t, ns.ProcessIO(&nvme.Request{Cmd: cmd}, &ret))
}

// Two LPNs in the same flash page cost one sensing operation; in
// different flash pages they serialize on the LUN.
func TestReadAggregation(t *testing.T) {
	clk := &fakeClock{}

	mapPage := func(f *FTL, lpn uint64, ppa ssd.PPA) {
		f.setMaptblEnt(lpn, ppa)
		f.setRmapEnt(lpn, ppa)
		f.markPageValid(ppa)
	}

	// Same flash page: one aggregated 8 KiB read.
	ns := newTestNS(t, GCModeGreedy, clk)
	f := ns.ftls[0]
	sp := f.ssd.SP
	base := ssd.NewPPA(0, 0, 0, 5, 0)
	mapPage(f, 0, base)
	mapPage(f, 1, base.WithPg(1))

	agg := readPages(t, ns, 0, 2)

	ch := f.ssd.ChOf(base)
	wantAgg := sp.FWReadLat + sp.ReadLat[ssd.CellTypeLSB] +
		ch.Perf.XferTime(8*ssd.KB) + f.ssd.PCIe.XferTime(8*ssd.KB)
	assert.Equal(t, wantAgg, agg.NsecsTarget)

	// Different flash pages on one LUN: two sensing operations back to
	// back.
	ns2 := newTestNS(t, GCModeGreedy, clk)
	f2 := ns2.ftls[0]
	mapPage(f2, 0, base)
	mapPage(f2, 1, base.WithPg(sp.PgsPerFlashPg))

	split := readPages(t, ns2, 0, 2)

	wantSplit := sp.FWReadLat +
		sp.Read4KLat[ssd.CellTypeLSB] + ch.Perf.XferTime(4*ssd.KB) + // first segment
		sp.Read4KLat[ssd.CellTypeMSB] + ch.Perf.XferTime(4*ssd.KB) + // second waits on the LUN
		f2.ssd.PCIe.XferTime(4*ssd.KB)
	assert.Equal(t, wantSplit, split.NsecsTarget)

	assert.Less(t, agg.NsecsTarget, split.NsecsTarget, "aggregation must be cheaper")
}

// Flush reports the busiest LUN across the namespace.
func TestFlushReturnsLatestLUN(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)
	f := ns.ftls[0]

	f.ssd.LUNOf(ssd.NewPPA(0, 0, 0, 0, 0)).NextAvailTime = 1_000_000
	f.ssd.LUNOf(ssd.NewPPA(0, 1, 0, 0, 0)).NextAvailTime = 1_400_000

	cmd := &nvme.Command{Opcode: nvme.CmdFlush}
	var ret nvme.Result
	require.True(t, ns.ProcessIO(&nvme.Request{Cmd: cmd}, &ret))
	assert.Equal(t, nvme.SCSuccess, ret.Status)
	assert.Equal(t, uint64(1_400_000), ret.NsecsTarget)
}

// A write larger than the buffer's remaining space is bounced back to
// the host with no FTL state touched.
func TestWriteBufferPressure(t *testing.T) {
	clk := &fakeClock{}
	cfg := &CoreConfig{GCMode: GCModeGreedy, Now: clk.fn()}
	ns, err := NewNamespace(1, ssd.Samsung970Pro, 64*ssd.MB, 1, cfg, blockedSched{})
	require.NoError(t, err)
	f := ns.ftls[0]
	sp := f.ssd.SP

	// Drain the buffer with writes whose releases never come back.
	bufPages := f.ssd.WBuf.Size() / uint64(sp.PgSz)
	writePages(t, ns, 0, bufPages)
	require.Zero(t, f.ssd.WBuf.Remaining())

	cmd := &nvme.Command{
		Opcode: nvme.CmdWrite,
		SLBA:   bufPages * uint64(sp.SecsPerPg),
		Length: uint16(sp.SecsPerPg - 1),
	}
	var ret nvme.Result
	assert.False(t, ns.ProcessIO(&nvme.Request{Cmd: cmd}, &ret))
	assert.Equal(t, ssd.UnmappedPPA, f.maptbl[bufPages], "refused write must not map anything")
}

func TestUnsupportedOpcode(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNS(t, GCModeGreedy, clk)

	cmd := &nvme.Command{Opcode: 0x99}
	var ret nvme.Result
	assert.True(t, ns.ProcessIO(&nvme.Request{Cmd: cmd}, &ret))
	assert.Equal(t, ssd.UnmappedPPA, ns.ftls[0].maptbl[0])
}

// FUA waits for the flash program; otherwise completion lands when the
// payload reaches the buffer.
func TestWriteEarlyCompletionAndFUA(t *testing.T) {
	clk := &fakeClock{}
	sp := newTestNS(t, GCModeGreedy, clk).ftls[0].ssd.SP
	wordline := uint64(sp.PgsPerOneshotPg)

	early := writePages(t, newTestNS(t, GCModeGreedy, clk), 0, wordline)

	ns := newTestNS(t, GCModeGreedy, clk)
	cmd := &nvme.Command{
		Opcode:  nvme.CmdWrite,
		SLBA:    0,
		Length:  uint16(wordline*uint64(sp.SecsPerPg) - 1),
		Control: nvme.RWFUA,
	}
	var fua nvme.Result
	require.True(t, ns.ProcessIO(&nvme.Request{Cmd: cmd}, &fua))

	// Early completion: firmware buffering plus the PCIe hop.
	bytes := wordline * uint64(sp.PgSz)
	wantEarly := sp.FWWBufLat0 + sp.FWWBufLat1*uint64(sp.PgsPerOneshotPg) +
		ns.ftls[0].ssd.PCIe.XferTime(bytes)
	assert.Equal(t, wantEarly, early.NsecsTarget)

	// FUA: channel transfer of the one-shot group plus the program.
	wantFUA := wantEarly +
		ns.ftls[0].ssd.Ch[0].Perf.XferTime(bytes) + sp.ProgLat
	assert.Equal(t, wantFUA, fua.NsecsTarget)
	assert.Greater(t, fua.NsecsTarget, early.NsecsTarget)
}

// LPNs stripe across partitions by modulus; the local LPN is the
// quotient.
func TestPartitionStriping(t *testing.T) {
	clk := &fakeClock{}
	ns := newTestNSParts(t, GCModeGreedy, clk, 4)

	writePages(t, ns, 0, 8)

	for i, f := range ns.ftls {
		assert.True(t, f.maptbl[0].Mapped(), "partition %d local lpn 0", i)
		assert.True(t, f.maptbl[1].Mapped(), "partition %d local lpn 1", i)
		assert.False(t, f.maptbl[2].Mapped(), "partition %d local lpn 2", i)
		checkMapConsistency(t, f)
	}
}
