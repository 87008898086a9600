// Package workload drives a namespace the way the NVMe dispatcher
// would: it submits synthetic host commands, tracks simulated time, and
// plays the dispatcher's half of the internal-operation contract by
// releasing write-buffer space when wordline programs complete.
package workload

import (
	"math/rand"
	"sort"

	"github.com/newhook/ssdsim/ftl"
	"github.com/newhook/ssdsim/nvme"
	"github.com/newhook/ssdsim/ssd"
)

// FlushCommand is a ready-made flush for drivers.
var FlushCommand = nvme.Command{Opcode: nvme.CmdFlush}

// Patterns a generator can produce.
const (
	PatternSeq       = "seq"
	PatternRand      = "rand"
	PatternOverwrite = "overwrite"
	PatternMixed     = "mixed"
)

type internalOp struct {
	nsecsTarget uint64
	buf         *ssd.Buffer
	bytes       uint64
}

// Dispatcher implements ftl.InternalScheduler with a time-ordered
// pending queue. The FTL core schedules buffer releases against
// simulated completion times; the driver drains them as its clock
// passes those times.
type Dispatcher struct {
	pending []internalOp
}

// ScheduleInternalOperation queues a buffer release for nsecsTarget.
func (d *Dispatcher) ScheduleInternalOperation(sqID int, nsecsTarget uint64, buf *ssd.Buffer, bytesToRelease uint64) {
	i := sort.Search(len(d.pending), func(i int) bool {
		return d.pending[i].nsecsTarget > nsecsTarget
	})
	d.pending = append(d.pending, internalOp{})
	copy(d.pending[i+1:], d.pending[i:])
	d.pending[i] = internalOp{nsecsTarget: nsecsTarget, buf: buf, bytes: bytesToRelease}
}

// DrainThrough releases every operation due at or before now.
func (d *Dispatcher) DrainThrough(now uint64) {
	i := 0
	for ; i < len(d.pending) && d.pending[i].nsecsTarget <= now; i++ {
		d.pending[i].buf.Release(d.pending[i].bytes)
	}
	d.pending = d.pending[i:]
}

// ReleaseEarliest forces the earliest pending release through and
// returns its completion time. Used to make progress under buffer
// pressure. Returns 0, false when nothing is pending.
func (d *Dispatcher) ReleaseEarliest() (uint64, bool) {
	if len(d.pending) == 0 {
		return 0, false
	}
	op := d.pending[0]
	d.pending = d.pending[1:]
	op.buf.Release(op.bytes)
	return op.nsecsTarget, true
}

// Pending returns how many releases are queued.
func (d *Dispatcher) Pending() int {
	return len(d.pending)
}

// Runner submits commands against one namespace and keeps the simulated
// clock.
type Runner struct {
	NS   *ftl.Namespace
	Disp *Dispatcher

	SimTime uint64

	Reads      uint64
	Writes     uint64
	Flushes    uint64
	Retries    uint64
	ReadNsecs  uint64
	WriteNsecs uint64
}

// NewRunner wires a runner around a namespace built with disp as its
// scheduler.
func NewRunner(ns *ftl.Namespace, disp *Dispatcher) *Runner {
	return &Runner{NS: ns, Disp: disp}
}

// Submit runs one command to completion, retrying buffer pressure by
// forcing pending releases through. Returns the result.
func (r *Runner) Submit(cmd *nvme.Command) nvme.Result {
	req := &nvme.Request{Cmd: cmd, SQID: 0, NsecsStart: r.SimTime}
	var ret nvme.Result

	r.Disp.DrainThrough(r.SimTime)

	for !r.NS.ProcessIO(req, &ret) {
		r.Retries++
		t, ok := r.Disp.ReleaseEarliest()
		if !ok {
			// Nothing in flight and still refused: the command itself
			// is oversized for the buffer or out of range; give up.
			ret.Status = nvme.SCInvalidField
			return ret
		}
		if t > r.SimTime {
			r.SimTime = t
			req.NsecsStart = t
		}
	}

	if ret.NsecsTarget > r.SimTime {
		r.SimTime = ret.NsecsTarget
	}

	switch cmd.Opcode {
	case nvme.CmdRead:
		r.Reads++
		r.ReadNsecs += ret.NsecsTarget - req.NsecsStart
	case nvme.CmdWrite:
		r.Writes++
		r.WriteNsecs += ret.NsecsTarget - req.NsecsStart
	case nvme.CmdFlush:
		r.Flushes++
	}
	return ret
}

// Generator produces a stream of host commands over the namespace's
// logical space.
type Generator struct {
	rng     *rand.Rand
	pattern string

	secsPerPg int
	totalLBAs uint64
	ioLBAs    uint64

	nextLBA uint64

	// 80% of the mixed pattern's writes land in the first hotRegion
	// LBAs.
	hotRegion uint64
}

// NewGenerator builds a generator for a namespace. ioBytes is the size
// of each IO; pattern is one of the Pattern constants.
func NewGenerator(ns *ftl.Namespace, pattern string, ioBytes uint64, rng *rand.Rand) *Generator {
	sp := ns.Partitions()[0].SSD().SP
	total := ns.Size / uint64(sp.SecSz)
	io := ioBytes / uint64(sp.SecSz)
	if io == 0 {
		io = uint64(sp.SecsPerPg)
	}
	return &Generator{
		rng:       rng,
		pattern:   pattern,
		secsPerPg: sp.SecsPerPg,
		totalLBAs: total,
		ioLBAs:    io,
		hotRegion: total / 5,
	}
}

// Next returns the generator's next write or read command.
func (g *Generator) Next() *nvme.Command {
	var lba uint64
	op := nvme.CmdWrite

	switch g.pattern {
	case PatternSeq:
		lba = g.nextLBA
		g.nextLBA += g.ioLBAs
		if g.nextLBA+g.ioLBAs > g.totalLBAs {
			g.nextLBA = 0
		}
	case PatternRand:
		lba = g.alignedRand(g.totalLBAs)
	case PatternOverwrite:
		// Hammer the hot region only.
		lba = g.alignedRand(g.hotRegion)
	case PatternMixed:
		if g.rng.Intn(100) < 30 {
			op = nvme.CmdRead
			lba = g.alignedRand(g.totalLBAs)
		} else if g.rng.Intn(100) < 80 {
			lba = g.alignedRand(g.hotRegion)
		} else {
			lba = g.alignedRand(g.totalLBAs)
		}
	default:
		lba = g.nextLBA
		g.nextLBA += g.ioLBAs
		if g.nextLBA+g.ioLBAs > g.totalLBAs {
			g.nextLBA = 0
		}
	}

	return &nvme.Command{
		Opcode: op,
		SLBA:   lba,
		Length: uint16(g.ioLBAs - 1),
	}
}

func (g *Generator) alignedRand(span uint64) uint64 {
	if span <= g.ioLBAs {
		return 0
	}
	slots := (span - g.ioLBAs) / uint64(g.secsPerPg)
	return uint64(g.rng.Int63n(int64(slots+1))) * uint64(g.secsPerPg)
}
