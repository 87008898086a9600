package ssd

import "fmt"

// Params is the fully derived spec sheet of one FTL partition: the raw
// Config constants plus every count the FTL needs precomputed. Immutable
// after New.
type Params struct {
	SecSz     int
	SecsPerPg int
	PgSz      int

	NChs      int
	LUNsPerCh int
	PlsPerLUN int
	BlksPerPl int
	CellMode  int

	PgsPerFlashPg    int
	FlashPgsPerBlk   int
	PgsPerOneshotPg  int
	OneshotPgsPerBlk int
	PgsPerBlk        int

	MaxChXferSize int
	WriteUnitSize int

	WriteEarlyCompletion bool

	Read4KLat [MaxCellTypes]uint64
	ReadLat   [MaxCellTypes]uint64
	ProgLat   uint64
	EraseLat  uint64

	FW4KReadLat uint64
	FWReadLat   uint64
	FWWBufLat0  uint64
	FWWBufLat1  uint64
	FWChXferLat uint64

	ChBandwidth   uint64
	PCIeBandwidth uint64

	// Derived totals.
	SecsPerBlk uint64
	TtSecs     uint64

	PgsPerPl  uint64
	PgsPerLUN uint64
	PgsPerCh  uint64
	TtPgs     uint64

	BlksPerLUN uint64
	BlksPerCh  uint64
	TtBlks     uint64

	PlsPerCh uint64
	TtPls    uint64
	TtLUNs   uint64

	BlksPerLine uint64
	PgsPerLine  uint64
	SecsPerLine uint64
	TtLines     uint64

	WriteBufferSize uint64
	OPAreaPercent   float64
}

func divRoundUp(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// NewParams derives the geometry for one partition of a device of the
// given class. capacity is the physical byte capacity of the whole
// device; nparts is the number of parallel FTL instances it is split
// into.
func NewParams(class DeviceClass, capacity uint64, nparts int) *Params {
	cfg := ConfigFor(class)
	capacity /= uint64(nparts)

	sp := &Params{
		SecSz:     cfg.LBASize,
		SecsPerPg: cfg.PageSz / cfg.LBASize,
		PgSz:      cfg.PageSz,

		NChs:      cfg.NandChannels,
		LUNsPerCh: cfg.LUNsPerCh,
		PlsPerLUN: cfg.PlanesPerLUN,
		BlksPerPl: cfg.BlksPerPlane,
		CellMode:  cfg.CellMode,

		MaxChXferSize: cfg.MaxChXferSize,
		WriteUnitSize: cfg.WriteUnitSize,

		WriteEarlyCompletion: cfg.WriteEarlyCompletion,

		Read4KLat: cfg.Read4KLat,
		ReadLat:   cfg.ReadLat,
		ProgLat:   cfg.ProgLat,
		EraseLat:  cfg.EraseLat,

		FW4KReadLat: cfg.FW4KReadLat,
		FWReadLat:   cfg.FWReadLat,
		FWWBufLat0:  cfg.FWWBufLat0,
		FWWBufLat1:  cfg.FWWBufLat1,
		FWChXferLat: cfg.FWChXferLat,

		ChBandwidth:   cfg.ChBandwidth,
		PCIeBandwidth: cfg.PCIeBandwidth,

		WriteBufferSize: cfg.WriteBufferSize,
		OPAreaPercent:   cfg.OPAreaPercent,
	}

	sp.TtLUNs = uint64(sp.LUNsPerCh * sp.NChs)

	// Block size follows from the capacity spread over the fixed block
	// count, rounded up to whole one-shot program units.
	blkSize := divRoundUp(capacity, uint64(sp.BlksPerPl)*sp.TtLUNs)

	if cfg.OneshotPgSize%cfg.FlashPageSize != 0 {
		panic("ssd: one-shot page size must be a multiple of the flash page size")
	}
	if cfg.FlashPageSize%cfg.PageSz != 0 {
		panic("ssd: flash page size must be a multiple of the mapping page size")
	}

	sp.PgsPerOneshotPg = cfg.OneshotPgSize / sp.PgSz
	sp.OneshotPgsPerBlk = int(divRoundUp(blkSize, uint64(cfg.OneshotPgSize)))
	sp.PgsPerFlashPg = cfg.FlashPageSize / sp.PgSz
	sp.FlashPgsPerBlk = (cfg.OneshotPgSize / cfg.FlashPageSize) * sp.OneshotPgsPerBlk
	sp.PgsPerBlk = sp.PgsPerOneshotPg * sp.OneshotPgsPerBlk

	sp.PgsPerPl = uint64(sp.PgsPerBlk * sp.BlksPerPl)
	sp.PgsPerLUN = sp.PgsPerPl * uint64(sp.PlsPerLUN)
	sp.PgsPerCh = sp.PgsPerLUN * uint64(sp.LUNsPerCh)
	sp.TtPgs = sp.PgsPerCh * uint64(sp.NChs)

	sp.SecsPerBlk = uint64(sp.SecsPerPg * sp.PgsPerBlk)
	sp.TtSecs = sp.TtPgs * uint64(sp.SecsPerPg)

	sp.BlksPerLUN = uint64(sp.BlksPerPl * sp.PlsPerLUN)
	sp.BlksPerCh = sp.BlksPerLUN * uint64(sp.LUNsPerCh)
	sp.TtBlks = sp.BlksPerCh * uint64(sp.NChs)

	sp.PlsPerCh = uint64(sp.PlsPerLUN * sp.LUNsPerCh)
	sp.TtPls = sp.PlsPerCh * uint64(sp.NChs)

	// A line takes the same-id block from every LUN.
	sp.BlksPerLine = sp.TtLUNs
	sp.PgsPerLine = sp.BlksPerLine * uint64(sp.PgsPerBlk)
	sp.SecsPerLine = sp.PgsPerLine * uint64(sp.SecsPerPg)
	sp.TtLines = sp.BlksPerLUN
	if sp.TtLines != uint64(sp.BlksPerPl) {
		panic("ssd: line count must equal blocks per plane")
	}

	return sp
}

// PageIndex linearizes a PPA into a dense index in [0, TtPgs). The
// ordering is Horner over {ch, lun, pl, blk, pg}, the inverse of
// PPAFromPageIndex.
func (sp *Params) PageIndex(ppa PPA) uint64 {
	idx := uint64(ppa.Ch())*sp.PgsPerCh + uint64(ppa.LUN())*sp.PgsPerLUN +
		uint64(ppa.Plane())*sp.PgsPerPl + uint64(ppa.Blk())*uint64(sp.PgsPerBlk) +
		uint64(ppa.Pg())
	if idx >= sp.TtPgs {
		panic(fmt.Sprintf("ssd: page index %d out of range (ch:%d lun:%d pl:%d blk:%d pg:%d)",
			idx, ppa.Ch(), ppa.LUN(), ppa.Plane(), ppa.Blk(), ppa.Pg()))
	}
	return idx
}

// PPAFromPageIndex is the inverse of PageIndex.
func (sp *Params) PPAFromPageIndex(idx uint64) PPA {
	if idx >= sp.TtPgs {
		panic(fmt.Sprintf("ssd: page index %d out of range", idx))
	}
	ch := idx / sp.PgsPerCh
	idx %= sp.PgsPerCh
	lun := idx / sp.PgsPerLUN
	idx %= sp.PgsPerLUN
	pl := idx / sp.PgsPerPl
	idx %= sp.PgsPerPl
	blk := idx / uint64(sp.PgsPerBlk)
	pg := idx % uint64(sp.PgsPerBlk)
	return NewPPA(int(ch), int(lun), int(pl), int(blk), int(pg))
}

// CellType returns which page of the TLC wordline a PPA lands on, which
// drives the asymmetric read latencies.
func (sp *Params) CellType(ppa PPA) int {
	return (ppa.Pg() / sp.PgsPerFlashPg) % sp.CellMode
}

// ValidPPA reports whether every address component is inside the
// geometry.
func (sp *Params) ValidPPA(ppa PPA) bool {
	if !ppa.Mapped() {
		return false
	}
	return ppa.Ch() < sp.NChs &&
		ppa.LUN() < sp.LUNsPerCh &&
		ppa.Plane() < sp.PlsPerLUN &&
		ppa.Blk() < sp.BlksPerPl &&
		ppa.Pg() < sp.PgsPerBlk
}

// ValidLPN reports whether a partition-local LPN is inside the map.
func (sp *Params) ValidLPN(lpn uint64) bool {
	return lpn < sp.TtPgs
}
