package ftl

import (
	"fmt"

	"github.com/newhook/ssdsim/ssd"
)

// writePointer is an append cursor over the currently open line. Two
// coexist per partition: one for host writes, one for GC relocation, so
// hot host data and cold GC survivors never share a line.
type writePointer struct {
	curline *Line
	ch      int
	lun     int
	pg      int
	blk     int
	pl      int
}

func (f *FTL) wpOf(ioType int) *writePointer {
	switch ioType {
	case ssd.UserIO:
		return &f.wp
	case ssd.GCIO:
		return &f.gcWP
	}
	panic(fmt.Sprintf("ftl: unknown io type %d", ioType))
}

// prepareWritePointer binds a fresh free line to the cursor.
func (f *FTL) prepareWritePointer(ioType int) {
	wp := f.wpOf(ioType)
	curline := f.getNextFreeLine()

	*wp = writePointer{
		curline: curline,
		blk:     curline.ID,
	}
}

func checkAddr(a, max int) {
	if a < 0 || a >= max {
		panic(fmt.Sprintf("ftl: address %d out of range [0,%d)", a, max))
	}
}

// advanceWritePointer moves the cursor one page forward in the order
// page -> channel -> LUN -> wordline, which stripes consecutive writes
// across every channel and die before deepening into the block. When
// the open line's last page is consumed the line retires to the full
// list or the victim queue and a fresh free line is bound.
func (f *FTL) advanceWritePointer(ioType int) {
	sp := f.ssd.SP
	lm := &f.lm
	wpp := f.wpOf(ioType)

	checkAddr(wpp.pg, sp.PgsPerBlk)
	wpp.pg++
	if wpp.pg%sp.PgsPerOneshotPg != 0 {
		return
	}

	wpp.pg -= sp.PgsPerOneshotPg
	checkAddr(wpp.ch, sp.NChs)
	wpp.ch++
	if wpp.ch != sp.NChs {
		return
	}

	wpp.ch = 0
	checkAddr(wpp.lun, sp.LUNsPerCh)
	wpp.lun++
	if wpp.lun != sp.LUNsPerCh {
		return
	}

	wpp.lun = 0
	// next wordline in the block
	wpp.pg += sp.PgsPerOneshotPg
	if wpp.pg != sp.PgsPerBlk {
		return
	}

	// The open line is exhausted; retire it.
	wpp.pg = 0
	if uint64(wpp.curline.VPC) == sp.PgsPerLine {
		if wpp.curline.IPC != 0 {
			panic("ftl: full line carries invalid pages")
		}
		wpp.curline.elem = lm.fullList.PushBack(wpp.curline)
		lm.fullLineCnt++
	} else {
		if wpp.curline.VPC < 0 || uint64(wpp.curline.VPC) >= sp.PgsPerLine {
			panic("ftl: retiring line with vpc out of range")
		}
		// Not full means some page was overwritten mid-sweep.
		if wpp.curline.IPC <= 0 {
			panic("ftl: partially valid line with no invalid pages")
		}
		if err := lm.victimPQ.Insert(wpp.curline); err != nil {
			panic(err)
		}
		lm.victimLineCnt++
	}

	checkAddr(wpp.blk, sp.BlksPerPl)
	wpp.curline = f.getNextFreeLine()
	wpp.blk = wpp.curline.ID
	checkAddr(wpp.blk, sp.BlksPerPl)

	if wpp.pg != 0 || wpp.lun != 0 || wpp.ch != 0 || wpp.pl != 0 {
		panic("ftl: new line must open at origin")
	}
}

// getNewPage returns the PPA the cursor points at.
func (f *FTL) getNewPage(ioType int) ssd.PPA {
	wp := f.wpOf(ioType)
	if wp.pl != 0 {
		panic("ftl: multi-plane allocation not supported")
	}
	return ssd.NewPPA(wp.ch, wp.lun, wp.pl, wp.blk, wp.pg)
}

// lastPgInWordline reports whether ppa is the final page of a one-shot
// program group, i.e. the point where a real program command is issued.
func (f *FTL) lastPgInWordline(ppa ssd.PPA) bool {
	sp := f.ssd.SP
	return ppa.Pg()%sp.PgsPerOneshotPg == sp.PgsPerOneshotPg-1
}
