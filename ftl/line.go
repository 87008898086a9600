package ftl

import (
	"container/list"
	"fmt"

	"github.com/prometheus/common/log"

	"github.com/newhook/ssdsim/pqueue"
	"github.com/newhook/ssdsim/ssd"
)

// Line is one superblock: the same-id block from every channel and LUN,
// erased and collected as a unit. A line's heap position doubles as its
// membership flag; pos 0 means it is not a victim candidate.
type Line struct {
	ID  int
	IPC int // invalid pages across the whole line
	VPC int // valid pages across the whole line

	pos          int
	LastModified uint64 // ns of the most recent invalidation

	elem *list.Element // slot on the free or full list, nil otherwise
}

// The victim queue stores *Line; priority is the valid-page count, so a
// min-ordered queue floats the cheapest victim to the root.

func (l *Line) Priority() uint64 {
	return uint64(l.VPC)
}

func (l *Line) SetPriority(pri uint64) {
	l.VPC = int(pri)
}

func (l *Line) Pos() int {
	return l.pos
}

func (l *Line) SetPos(pos int) {
	l.pos = pos
}

// lineMgmt tracks every line of a partition across the free list, the
// victim queue, and the full list.
type lineMgmt struct {
	lines []Line

	freeList *list.List
	fullList *list.List
	victimPQ *pqueue.Queue

	selectVictim victimSelectFunc

	ttLines       int
	freeLineCnt   int
	victimLineCnt int
	fullLineCnt   int
}

func cmpPriGreedy(next, curr uint64) bool {
	return next > curr
}

// cmpPriDummy keeps the queue an unordered bag for the policies that
// scan or sample it instead of popping the root.
func cmpPriDummy(next, curr uint64) bool {
	return false
}

func (f *FTL) initLines() {
	sp := f.ssd.SP
	lm := &f.lm

	var cmp pqueue.CmpFunc
	switch f.cfg.GCMode {
	case GCModeRandom:
		log.Infof("GC strategy: random")
		lm.selectVictim = selectVictimRandom
		cmp = cmpPriDummy
	case GCModeCostBenefit:
		log.Infof("GC strategy: cost-benefit (linear scan)")
		lm.selectVictim = selectVictimCostBenefit
		cmp = cmpPriDummy
	default:
		log.Infof("GC strategy: greedy")
		lm.selectVictim = selectVictimGreedy
		cmp = cmpPriGreedy
	}

	lm.ttLines = sp.BlksPerPl
	if uint64(lm.ttLines) != sp.TtLines {
		panic("ftl: line count disagrees with geometry")
	}

	lm.lines = make([]Line, lm.ttLines)
	lm.freeList = list.New()
	lm.fullList = list.New()
	lm.victimPQ = pqueue.New(int(sp.TtLines), cmp)

	lm.freeLineCnt = 0
	for i := range lm.lines {
		line := &lm.lines[i]
		*line = Line{ID: i}
		line.elem = lm.freeList.PushBack(line)
		lm.freeLineCnt++
	}
	lm.victimLineCnt = 0
	lm.fullLineCnt = 0
}

// getNextFreeLine pops the oldest free line. An empty free pool is fatal
// to the simulation.
func (f *FTL) getNextFreeLine() *Line {
	lm := &f.lm
	front := lm.freeList.Front()
	if front == nil {
		log.Errorf("no free line left")
		panic("ftl: free line pool exhausted")
	}
	line := front.Value.(*Line)
	lm.freeList.Remove(front)
	line.elem = nil
	lm.freeLineCnt--
	return line
}

// lineOf maps a PPA to its containing line; line id equals block id.
func (f *FTL) lineOf(ppa ssd.PPA) *Line {
	return &f.lm.lines[ppa.Blk()]
}

// markPageInvalid retires the old copy of an overwritten or relocated
// page: page VALID -> INVALID, block and line accounting updated, and
// the line's standing in the victim queue refreshed.
func (f *FTL) markPageInvalid(ppa ssd.PPA) {
	sp := f.ssd.SP
	lm := &f.lm

	pg := f.ssd.PageOf(ppa)
	if pg.Status != ssd.PgValid {
		panic(fmt.Sprintf("ftl: invalidating page in state %d", pg.Status))
	}
	pg.Status = ssd.PgInvalid

	blk := f.ssd.BlkOf(ppa)
	if blk.IPC < 0 || blk.IPC >= sp.PgsPerBlk {
		panic("ftl: block ipc out of range")
	}
	blk.IPC++
	if blk.VPC <= 0 || blk.VPC > sp.PgsPerBlk {
		panic("ftl: block vpc out of range")
	}
	blk.VPC--

	line := f.lineOf(ppa)
	if line.IPC < 0 || uint64(line.IPC) >= sp.PgsPerLine {
		panic("ftl: line ipc out of range")
	}
	wasFullLine := false
	if uint64(line.VPC) == sp.PgsPerLine {
		if line.IPC != 0 {
			panic("ftl: full line with invalid pages")
		}
		wasFullLine = true
	}
	line.IPC++
	if line.VPC <= 0 || uint64(line.VPC) > sp.PgsPerLine {
		panic("ftl: line vpc out of range")
	}
	if line.pos != 0 {
		// Already a victim candidate; the priority setter updates VPC.
		lm.victimPQ.ChangePriority(line, uint64(line.VPC-1))
	} else {
		line.VPC--
	}

	if wasFullLine {
		// full -> victim
		lm.fullList.Remove(line.elem)
		line.elem = nil
		lm.fullLineCnt--
		if err := lm.victimPQ.Insert(line); err != nil {
			panic(err)
		}
		lm.victimLineCnt++
	}
	line.LastModified = f.cfg.Now()
}

// markPageValid records a fresh write: page FREE -> VALID plus block and
// line counters.
func (f *FTL) markPageValid(ppa ssd.PPA) {
	sp := f.ssd.SP

	pg := f.ssd.PageOf(ppa)
	if pg.Status != ssd.PgFree {
		panic(fmt.Sprintf("ftl: validating page in state %d", pg.Status))
	}
	pg.Status = ssd.PgValid

	blk := f.ssd.BlkOf(ppa)
	if blk.VPC < 0 || blk.VPC >= sp.PgsPerBlk {
		panic("ftl: block vpc out of range")
	}
	blk.VPC++

	line := f.lineOf(ppa)
	if line.VPC < 0 || uint64(line.VPC) >= sp.PgsPerLine {
		panic("ftl: line vpc out of range")
	}
	line.VPC++
}

// markBlockFree resets a block after erase.
func (f *FTL) markBlockFree(ppa ssd.PPA) {
	sp := f.ssd.SP
	blk := f.ssd.BlkOf(ppa)

	for i := range blk.Pg {
		blk.Pg[i].Status = ssd.PgFree
	}
	if len(blk.Pg) != sp.PgsPerBlk {
		panic("ftl: block page count disagrees with geometry")
	}
	blk.IPC = 0
	blk.VPC = 0
	blk.EraseCnt++
}

// markLineFree returns a collected line to the free pool.
func (f *FTL) markLineFree(ppa ssd.PPA) {
	lm := &f.lm
	line := f.lineOf(ppa)
	line.IPC = 0
	line.VPC = 0
	line.elem = lm.freeList.PushBack(line)
	lm.freeLineCnt++
}

// Victims returns up to n entries of the victim queue's backing array,
// root first. For the bag-ordered policies the order is arbitrary.
func (f *FTL) Victims(n int) []*Line {
	if n > f.lm.victimPQ.Len() {
		n = f.lm.victimPQ.Len()
	}
	out := make([]*Line, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, f.lm.victimPQ.At(i).(*Line))
	}
	return out
}

// FreeLines returns the current free-line count.
func (f *FTL) FreeLines() int { return f.lm.freeLineCnt }

// VictimLines returns the current victim-candidate count.
func (f *FTL) VictimLines() int { return f.lm.victimLineCnt }

// FullLines returns the current full-line count.
func (f *FTL) FullLines() int { return f.lm.fullLineCnt }
