package ftl

import (
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/newhook/ssdsim/nvme"
	"github.com/newhook/ssdsim/ssd"
)

// DefaultPartitions is how many parallel FTL instances a namespace is
// striped over.
const DefaultPartitions = 4

// InternalScheduler is the dispatcher-side contract for work the core
// wants done at a future simulated time; today that is returning write
// buffer space once a wordline program completes.
type InternalScheduler interface {
	ScheduleInternalOperation(sqID int, nsecsTarget uint64, buf *ssd.Buffer, bytesToRelease uint64)
}

// Namespace is one logical NVMe namespace: nrParts FTL partitions over
// disjoint stripes of the logical space, sharing one PCIe link and one
// write buffer for realistic back-pressure.
type Namespace struct {
	ID      uint32
	Size    uint64 // logical bytes exposed to the host
	nrParts int

	ftls  []*FTL
	cfg   *CoreConfig
	sched InternalScheduler

	Stats Stats
}

// NewNamespace builds every partition over the given physical capacity.
// nparts of 0 selects DefaultPartitions.
func NewNamespace(id uint32, class ssd.DeviceClass, capacity uint64, nparts int, cfg *CoreConfig, sched InternalScheduler) (*Namespace, error) {
	if nparts <= 0 {
		nparts = DefaultPartitions
	}
	if cfg == nil {
		cfg = &CoreConfig{}
	}
	if sched == nil {
		return nil, errors.New("ftl: namespace requires an internal-operation scheduler")
	}

	rcfg := cfg.withDefaults()
	sp := ssd.NewParams(class, capacity, nparts)
	cp := newConvParams(rcfg, sp.OPAreaPercent)

	ns := &Namespace{
		ID:      id,
		nrParts: nparts,
		cfg:     rcfg,
		sched:   sched,
	}

	ns.ftls = make([]*FTL, nparts)
	for i := range ns.ftls {
		dev := ssd.New(sp)
		if i > 0 {
			// PCIe and the write buffer are shared by all partitions.
			dev.PCIe = ns.ftls[0].ssd.PCIe
			dev.WBuf = ns.ftls[0].ssd.WBuf
		}
		ns.ftls[i] = newFTL(rcfg, cp, dev, &ns.Stats)
	}

	ns.Size = capacity * 100 / uint64(cp.pbaPcent)
	log.Infof("FTL physical space: %d, logical space: %d (physical/logical * 100 = %d)",
		capacity, ns.Size, cp.pbaPcent)

	return ns, nil
}

// Partitions returns the FTL instances (monitor/statistics use).
func (ns *Namespace) Partitions() []*FTL {
	return ns.ftls
}

// WriteBuffer returns the shared write buffer.
func (ns *Namespace) WriteBuffer() *ssd.Buffer {
	return ns.ftls[0].ssd.WBuf
}

// isSameFlashPage reports whether two PPAs share a physical sensing
// unit, making their reads aggregatable into one NAND command.
func isSameFlashPage(sp *ssd.Params, a, b ssd.PPA) bool {
	return a.BlkInSSD() == b.BlkInSSD() &&
		a.Pg()/sp.PgsPerFlashPg == b.Pg()/sp.PgsPerFlashPg
}

func (ns *Namespace) read(req *nvme.Request, ret *nvme.Result) bool {
	f := ns.ftls[0]
	sp := f.ssd.SP
	nrParts := uint64(ns.nrParts)

	cmd := req.Cmd
	lba := cmd.SLBA
	nrLBA := cmd.NrLBA()
	startLPN := lba / uint64(sp.SecsPerPg)
	endLPN := (lba + nrLBA - 1) / uint64(sp.SecsPerPg)

	if endLPN/nrParts >= sp.TtPgs {
		log.Errorf("read: lpn passed FTL range (start_lpn=%d, tt_pgs=%d)", startLPN, sp.TtPgs)
		return false
	}

	srd := ssd.Cmd{
		Type:             ssd.UserIO,
		Op:               ssd.NandRead,
		STime:            req.NsecsStart,
		InterleavePCIDMA: true,
	}

	// Small reads pay the short firmware preamble.
	if nrLBA*uint64(sp.SecSz) <= uint64(4*ssd.KB)*nrParts {
		srd.STime += sp.FW4KReadLat
	} else {
		srd.STime += sp.FWReadLat
	}

	nsecsLatest := req.NsecsStart

	for i := uint64(0); i < nrParts && startLPN <= endLPN; i, startLPN = i+1, startLPN+1 {
		f = ns.ftls[startLPN%nrParts]
		var xferSize uint64
		prevPPA := f.maptblEnt(startLPN / nrParts)

		for lpn := startLPN; lpn <= endLPN; lpn += nrParts {
			localLPN := lpn / nrParts
			curPPA := f.maptblEnt(localLPN)
			if !curPPA.Mapped() || !sp.ValidPPA(curPPA) {
				// Never written; the host reads stale bytes, not an error.
				continue
			}

			// Fold reads that land in the same flash page into one
			// sensing operation.
			if prevPPA.Mapped() && isSameFlashPage(sp, curPPA, prevPPA) {
				xferSize += uint64(sp.PgSz)
				continue
			}

			if xferSize > 0 {
				srd.XferSize = xferSize
				srd.PPA = prevPPA
				completed := f.ssd.AdvanceNAND(&srd)
				if completed > nsecsLatest {
					nsecsLatest = completed
				}
			}

			xferSize = uint64(sp.PgSz)
			prevPPA = curPPA
		}

		if xferSize > 0 {
			srd.XferSize = xferSize
			srd.PPA = prevPPA
			completed := f.ssd.AdvanceNAND(&srd)
			if completed > nsecsLatest {
				nsecsLatest = completed
			}
		}
	}

	ret.NsecsTarget = nsecsLatest
	ret.Status = nvme.SCSuccess
	return true
}

func (ns *Namespace) write(req *nvme.Request, ret *nvme.Result) bool {
	f := ns.ftls[0]
	sp := f.ssd.SP
	wbuf := f.ssd.WBuf
	nrParts := uint64(ns.nrParts)

	cmd := req.Cmd
	lba := cmd.SLBA
	nrLBA := cmd.NrLBA()
	startLPN := lba / uint64(sp.SecsPerPg)
	endLPN := (lba + nrLBA - 1) / uint64(sp.SecsPerPg)
	nrBytes := nrLBA * uint64(sp.SecSz)

	if endLPN/nrParts >= sp.TtPgs {
		log.Errorf("write: lpn passed FTL range (start_lpn=%d, tt_pgs=%d)", startLPN, sp.TtPgs)
		return false
	}

	if wbuf.Allocate(nrBytes) < nrBytes {
		// Queue-full to the host; it will retry once buffer drains.
		return false
	}

	nsecsLatest := f.ssd.AdvanceWriteBuffer(req.NsecsStart, nrBytes)
	nsecsXferCompleted := nsecsLatest

	swr := ssd.Cmd{
		Type:     ssd.UserIO,
		Op:       ssd.NandWrite,
		XferSize: uint64(sp.PgSz * sp.PgsPerOneshotPg),
		STime:    nsecsLatest,
	}

	for lpn := startLPN; lpn <= endLPN; lpn++ {
		f = ns.ftls[lpn%nrParts]
		localLPN := lpn / nrParts

		ppa := f.maptblEnt(localLPN)
		if ppa.Mapped() {
			// Overwrite: retire the old copy first.
			f.markPageInvalid(ppa)
			f.setRmapEnt(ssd.InvalidLPN, ppa)
		}

		ppa = f.getNewPage(ssd.UserIO)
		f.setMaptblEnt(localLPN, ppa)
		f.setRmapEnt(localLPN, ppa)
		f.markPageValid(ppa)
		f.advanceWritePointer(ssd.UserIO)

		// The program itself happens once per wordline, not per page.
		if f.lastPgInWordline(ppa) {
			swr.PPA = ppa
			completed := f.ssd.AdvanceNAND(&swr)
			if completed > nsecsLatest {
				nsecsLatest = completed
			}

			ns.sched.ScheduleInternalOperation(req.SQID, completed, wbuf,
				uint64(sp.PgsPerOneshotPg*sp.PgSz))
		}

		f.consumeWriteCredit()
		f.checkAndRefillWriteCredit()
	}

	if cmd.FUA() || !sp.WriteEarlyCompletion {
		ret.NsecsTarget = nsecsLatest
	} else {
		ret.NsecsTarget = nsecsXferCompleted
	}
	ret.Status = nvme.SCSuccess
	return true
}

func (ns *Namespace) flush(req *nvme.Request, ret *nvme.Result) {
	latest := ns.cfg.Now()
	for _, f := range ns.ftls {
		if idle := f.ssd.NextIdleTime(); idle > latest {
			latest = idle
		}
	}

	if ns.cfg.DebugMode != 0 {
		var totalGC, totalCopied uint64
		for _, f := range ns.ftls {
			totalGC += f.gcCount
			totalCopied += f.gcCopiedPages
		}

		avgPages := uint64(0)
		if totalGC > 0 {
			avgPages = totalCopied / totalGC
		}
		log.Infof("[flush gc stats] count=%d copied=%d avg-pages=%d", totalGC, totalCopied, avgPages)

		sampled := ns.Stats.TotalGCCnt.Load()
		if sampled > 0 {
			hot := ns.Stats.HotGCCnt.Load()
			cold := ns.Stats.ColdGCCnt.Load()
			log.Infof("[hot/cold] sampled=%d hot=%d cold=%d cold-ratio=%d%% avg-age=%dms",
				sampled, hot, cold, cold*100/sampled, ns.Stats.AvgVictimAgeMs())
		} else {
			log.Infof("[hot/cold] no GC triggered yet")
		}
	}

	ret.Status = nvme.SCSuccess
	ret.NsecsTarget = latest
}

// ProcessIO dispatches one host command into the core. The return value
// tells the dispatcher whether the command was consumed; false means
// "retry later" (buffer pressure or a malformed range).
func (ns *Namespace) ProcessIO(req *nvme.Request, ret *nvme.Result) bool {
	switch req.Cmd.Opcode {
	case nvme.CmdWrite:
		if !ns.write(req, ret) {
			return false
		}
	case nvme.CmdRead:
		if !ns.read(req, ret) {
			return false
		}
	case nvme.CmdFlush:
		ns.flush(req, ret)
	default:
		log.Errorf("command not implemented: %s (0x%02x)",
			nvme.OpcodeString(req.Cmd.Opcode), req.Cmd.Opcode)
	}

	return true
}
