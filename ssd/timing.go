package ssd

import "fmt"

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// AdvanceNAND runs one NAND command through the per-LUN and per-channel
// timing model and returns its simulated completion time.
//
// READ senses the page first (tR, cell-type dependent, with a faster
// variant for 4 KiB partial reads), then streams the data out over the
// channel in MaxChXferSize chunks, optionally interleaving each chunk's
// PCIe DMA. WRITE moves data in over the channel first, then programs
// (tPROG). ERASE occupies the LUN for tBERS with no transfer. NOP only
// synchronizes the LUN clock with the command's start time.
func (s *SSD) AdvanceNAND(cmd *Cmd) uint64 {
	sp := s.SP
	lun := s.LUNOf(cmd.PPA)
	ch := s.ChOf(cmd.PPA)

	var completed uint64

	switch cmd.Op {
	case NandRead:
		nandStart := maxU64(cmd.STime, lun.NextAvailTime)
		var nandEnd uint64
		cell := sp.CellType(cmd.PPA)
		if cmd.XferSize == 4*KB {
			nandEnd = nandStart + sp.Read4KLat[cell]
		} else {
			nandEnd = nandStart + sp.ReadLat[cell]
		}

		chnlStart := nandEnd
		var chnlEnd uint64
		remaining := cmd.XferSize
		for remaining > 0 {
			xfer := remaining
			if xfer > uint64(sp.MaxChXferSize) {
				xfer = uint64(sp.MaxChXferSize)
			}
			chnlEnd = ch.Perf.Transfer(chnlStart, xfer)
			if cmd.InterleavePCIDMA {
				completed = s.AdvancePCIe(chnlEnd, xfer)
			} else {
				completed = chnlEnd
			}
			remaining -= xfer
			chnlStart = chnlEnd
		}

		lun.NextAvailTime = chnlEnd

	case NandWrite:
		chnlEnd := ch.Perf.Transfer(cmd.STime, cmd.XferSize)
		nandStart := maxU64(chnlEnd, lun.NextAvailTime)
		nandEnd := nandStart + sp.ProgLat
		lun.NextAvailTime = nandEnd
		completed = nandEnd

	case NandErase:
		nandStart := maxU64(cmd.STime, lun.NextAvailTime)
		nandEnd := nandStart + sp.EraseLat
		lun.NextAvailTime = nandEnd
		completed = nandEnd

	case NandNop:
		nandStart := maxU64(cmd.STime, lun.NextAvailTime)
		lun.NextAvailTime = nandStart
		completed = nandStart

	default:
		panic(fmt.Sprintf("ssd: unknown NAND op %d", cmd.Op))
	}

	return completed
}

// AdvancePCIe schedules a DMA of length bytes over the shared PCIe link.
func (s *SSD) AdvancePCIe(reqTime, length uint64) uint64 {
	return s.PCIe.Transfer(reqTime, length)
}

// AdvanceWriteBuffer models the firmware accepting length bytes of host
// write data: a fixed setup cost plus a per-4KiB cost, then the PCIe
// transfer itself.
func (s *SSD) AdvanceWriteBuffer(reqTime, length uint64) uint64 {
	t := reqTime + s.SP.FWWBufLat0
	t += s.SP.FWWBufLat1 * divRoundUp(length, 4*KB)
	return s.AdvancePCIe(t, length)
}

// NextIdleTime returns when every LUN of this partition has drained.
func (s *SSD) NextIdleTime() uint64 {
	var latest uint64
	for c := range s.Ch {
		for l := range s.Ch[c].LUN {
			latest = maxU64(latest, s.Ch[c].LUN[l].NextAvailTime)
		}
	}
	return latest
}
