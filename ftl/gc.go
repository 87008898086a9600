package ftl

import (
	"github.com/newhook/ssdsim/ssd"
)

// gcWritePage relocates one valid page out of the victim: remap the LPN
// to a fresh page from the GC cursor, then account the program latency
// when the relocation closes a wordline.
func (f *FTL) gcWritePage(oldPPA ssd.PPA) {
	sp := f.ssd.SP

	lpn := f.rmapEnt(oldPPA)
	if !sp.ValidLPN(lpn) {
		panic("ftl: gc relocation of page with no logical owner")
	}
	newPPA := f.getNewPage(ssd.GCIO)
	f.setMaptblEnt(lpn, newPPA)
	f.setRmapEnt(lpn, newPPA)

	f.markPageValid(newPPA)
	f.gcCopiedPages++

	f.advanceWritePointer(ssd.GCIO)

	if f.cp.enableGCDelay {
		gcw := ssd.Cmd{
			Type: ssd.GCIO,
			Op:   ssd.NandNop,
			PPA:  newPPA,
		}
		if f.lastPgInWordline(newPPA) {
			gcw.Op = ssd.NandWrite
			gcw.XferSize = uint64(sp.PgSz * sp.PgsPerOneshotPg)
		}
		f.ssd.AdvanceNAND(&gcw)
	}
}

// cleanOneFlashpg relocates the valid pages of one flash-page group. The
// sensing cost is charged once for the whole group, sized by how many
// live pages it still holds.
func (f *FTL) cleanOneFlashpg(ppa ssd.PPA) {
	sp := f.ssd.SP

	cnt := 0
	iter := ppa
	for i := 0; i < sp.PgsPerFlashPg; i++ {
		pg := f.ssd.PageOf(iter)
		if pg.Status == ssd.PgFree {
			panic("ftl: free page inside a victim block")
		}
		if pg.Status == ssd.PgValid {
			cnt++
		}
		iter = iter.WithPg(iter.Pg() + 1)
	}

	if cnt <= 0 {
		return
	}

	if f.cp.enableGCDelay {
		gcr := ssd.Cmd{
			Type:     ssd.GCIO,
			Op:       ssd.NandRead,
			XferSize: uint64(sp.PgSz * cnt),
			PPA:      ppa,
		}
		f.ssd.AdvanceNAND(&gcr)
	}

	iter = ppa
	for i := 0; i < sp.PgsPerFlashPg; i++ {
		if f.ssd.PageOf(iter).Status == ssd.PgValid {
			// The map update waits until the relocation write below.
			f.gcWritePage(iter)
		}
		iter = iter.WithPg(iter.Pg() + 1)
	}
}

// countGCVictimType classifies a victim as hot or cold for the debug
// statistics by probing the first mapped LPN on channel 0, LUN 0 of the
// victim block. Hot and cold regions stripe across every channel, so
// one probe is representative.
func (f *FTL) countGCVictimType(victim *Line) {
	sp := f.ssd.SP

	// A victim with nothing left to copy was overwritten almost
	// immediately; count it hot.
	if victim.VPC == 0 {
		f.stats.HotGCCnt.Add(1)
		f.stats.TotalGCCnt.Add(1)
		return
	}

	checkLPN := ssd.InvalidLPN
	ppa := ssd.NewPPA(0, 0, 0, victim.ID, 0)
	for i := 0; i < sp.PgsPerBlk; i++ {
		checkLPN = f.rmapEnt(ppa.WithPg(i))
		if checkLPN != ssd.InvalidLPN {
			break
		}
	}

	if checkLPN == ssd.InvalidLPN {
		// The live pages hide on another channel or LUN; statistically
		// negligible, skip the sample.
		return
	}

	f.stats.TotalGCCnt.Add(1)
	if checkLPN < HotRegionLPNLimit {
		f.stats.HotGCCnt.Add(1)
	} else {
		f.stats.ColdGCCnt.Add(1)
	}
}

// doGC collects one victim line: relocate its valid pages stripe by
// stripe across every channel and LUN, erase each constituent block,
// and return the line to the free pool. Returns false when no victim
// qualified.
func (f *FTL) doGC(force bool) bool {
	sp := f.ssd.SP

	victim := f.lm.selectVictim(f, force)
	if victim == nil {
		return false
	}
	if f.cfg.DebugMode != 0 {
		f.countGCVictimType(victim)
	}
	f.gcCount++

	// Reclaimed space funds the next credit refill.
	f.wfc.creditsToRefill = victim.IPC

	base := ssd.NewPPA(0, 0, 0, victim.ID, 0)
	for flashpg := 0; flashpg < sp.FlashPgsPerBlk; flashpg++ {
		pg := flashpg * sp.PgsPerFlashPg
		for ch := 0; ch < sp.NChs; ch++ {
			for lun := 0; lun < sp.LUNsPerCh; lun++ {
				ppa := base.WithCh(ch).WithLUN(lun).WithPg(pg)
				lunp := f.ssd.LUNOf(ppa)
				f.cleanOneFlashpg(ppa)

				if flashpg == sp.FlashPgsPerBlk-1 {
					f.markBlockFree(ppa)

					if f.cp.enableGCDelay {
						gce := ssd.Cmd{
							Type: ssd.GCIO,
							Op:   ssd.NandErase,
							PPA:  ppa,
						}
						f.ssd.AdvanceNAND(&gce)
					}

					lunp.GCEndtime = lunp.NextAvailTime
				}
			}
		}
	}

	f.markLineFree(base)
	return true
}

// foregroundGC is the synchronous collection run on the write path when
// credits are exhausted. It only fires while the free pool sits at or
// under the high-water threshold.
func (f *FTL) foregroundGC() {
	if f.shouldGCHigh() {
		f.doGC(true)
	}
}
