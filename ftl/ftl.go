// Package ftl implements the page-mapping flash translation layer of the
// virtual SSD: logical-to-physical address translation, superblock
// (line) management, garbage collection with pluggable victim policies,
// and write-credit flow control. Latency is simulated, never slept; the
// handlers run to completion and report a synthetic completion time.
package ftl

import (
	"fmt"

	"github.com/prometheus/common/log"

	"github.com/newhook/ssdsim/ssd"
)

// writeFlowControl throttles host writes against GC progress. Credits
// start at one line's worth of pages; each page write burns one, and an
// exhausted counter runs foreground GC (which collects only while the
// free pool is low) and refills by the invalid pages the most recent
// collection reclaimed.
type writeFlowControl struct {
	writeCredits    int
	creditsToRefill int
}

// FTL is one partition of the device: a private mapping table, line
// pool, write pointers and LUN clocks over a shared PCIe link and write
// buffer. A partition is single-threaded by construction.
type FTL struct {
	ssd *ssd.SSD
	cp  convParams
	cfg *CoreConfig

	maptbl []ssd.PPA // LPN -> PPA
	rmap   []uint64  // page index -> LPN

	wp   writePointer
	gcWP writePointer

	lm  lineMgmt
	wfc writeFlowControl

	gcCount       uint64
	gcCopiedPages uint64

	stats *Stats
}

func newFTL(cfg *CoreConfig, cp convParams, dev *ssd.SSD, stats *Stats) *FTL {
	f := &FTL{
		ssd:   dev,
		cp:    cp,
		cfg:   cfg,
		stats: stats,
	}

	f.initMaptbl()
	f.initRmap()
	f.initLines()

	f.prepareWritePointer(ssd.UserIO)
	f.prepareWritePointer(ssd.GCIO)

	f.initWriteFlowControl()

	log.Infof("init FTL instance with %d channels (%d pages)", f.ssd.SP.NChs, f.ssd.SP.TtPgs)
	return f
}

func (f *FTL) initMaptbl() {
	f.maptbl = make([]ssd.PPA, f.ssd.SP.TtPgs)
	for i := range f.maptbl {
		f.maptbl[i] = ssd.UnmappedPPA
	}
}

func (f *FTL) initRmap() {
	f.rmap = make([]uint64, f.ssd.SP.TtPgs)
	for i := range f.rmap {
		f.rmap[i] = ssd.InvalidLPN
	}
}

func (f *FTL) initWriteFlowControl() {
	f.wfc.writeCredits = int(f.ssd.SP.PgsPerLine)
	f.wfc.creditsToRefill = int(f.ssd.SP.PgsPerLine)
}

// maptblEnt returns the forward mapping of a partition-local LPN.
func (f *FTL) maptblEnt(lpn uint64) ssd.PPA {
	return f.maptbl[lpn]
}

func (f *FTL) setMaptblEnt(lpn uint64, ppa ssd.PPA) {
	if lpn >= f.ssd.SP.TtPgs {
		panic(fmt.Sprintf("ftl: lpn %d out of range", lpn))
	}
	f.maptbl[lpn] = ppa
}

// rmapEnt returns the logical owner of a physical page.
func (f *FTL) rmapEnt(ppa ssd.PPA) uint64 {
	return f.rmap[f.ssd.SP.PageIndex(ppa)]
}

func (f *FTL) setRmapEnt(lpn uint64, ppa ssd.PPA) {
	f.rmap[f.ssd.SP.PageIndex(ppa)] = lpn
}

func (f *FTL) consumeWriteCredit() {
	f.wfc.writeCredits--
}

// checkAndRefillWriteCredit calls foregroundGC in line with the host
// write once the credit pool is dry, then refills by the last
// collection's reclaim.
func (f *FTL) checkAndRefillWriteCredit() {
	if f.wfc.writeCredits <= 0 {
		f.foregroundGC()
		f.wfc.writeCredits += f.wfc.creditsToRefill
	}
}

func (f *FTL) shouldGC() bool {
	return f.lm.freeLineCnt <= f.cp.gcThresLines
}

func (f *FTL) shouldGCHigh() bool {
	return f.lm.freeLineCnt <= f.cp.gcThresLinesHigh
}

// GCCount returns how many collections this partition has run.
func (f *FTL) GCCount() uint64 { return f.gcCount }

// GCCopiedPages returns how many valid pages GC has relocated.
func (f *FTL) GCCopiedPages() uint64 { return f.gcCopiedPages }

// WriteCredits returns the current flow-control credit balance.
func (f *FTL) WriteCredits() int { return f.wfc.writeCredits }

// SSD exposes the partition's device model (monitor/statistics use).
func (f *FTL) SSD() *ssd.SSD { return f.ssd }
