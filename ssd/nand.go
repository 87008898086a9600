package ssd

// NAND command kinds fed to the timing simulator.
const (
	NandRead = iota
	NandWrite
	NandErase
	NandNop // time sync only
)

// IO origin. User IO comes from the host; GC IO is internal valid-page
// relocation.
const (
	UserIO = iota
	GCIO
)

// Page / sector statuses.
const (
	SecFree    = 0
	SecInvalid = 1
	SecValid   = 2

	PgFree    = 0
	PgInvalid = 1
	PgValid   = 2
)

// Page is the FTL mapping unit's metadata.
type Page struct {
	Sec    []uint8
	Status int
}

// Block is the erase unit and the grain GC accounting works at.
type Block struct {
	Pg       []Page
	IPC      int // invalid page count
	VPC      int // valid page count
	EraseCnt int
	WP       int // next sequential page within the block
}

// Plane groups blocks inside a LUN.
type Plane struct {
	Blk []Block
}

// LUN is an independently operating die. NextAvailTime serializes the
// simulated commands executed on it.
type LUN struct {
	Pl            []Plane
	NextAvailTime uint64
	GCEndtime     uint64
}

// Channel is the bus a set of LUNs hangs off.
type Channel struct {
	LUN  []LUN
	Perf *ChannelModel
}

// Cmd describes one NAND operation for the timing simulator.
type Cmd struct {
	Type             int // UserIO or GCIO
	Op               int // NandRead / NandWrite / NandErase / NandNop
	XferSize         uint64
	STime            uint64 // request arrival time (ns)
	InterleavePCIDMA bool
	PPA              PPA
}

// SSD models one partition's NAND array plus the interfaces shared
// across partitions (PCIe link, write buffer).
type SSD struct {
	SP   *Params
	Ch   []Channel
	PCIe *ChannelModel
	WBuf *Buffer
}

// New builds the NAND array for one partition. The PCIe model and write
// buffer are created here too; the namespace replaces them on all but
// the first partition so they are shared.
func New(sp *Params) *SSD {
	s := &SSD{
		SP:   sp,
		Ch:   make([]Channel, sp.NChs),
		PCIe: NewChannelModel(sp.PCIeBandwidth, sp.FWChXferLat),
		WBuf: NewBuffer(sp.WriteBufferSize),
	}

	for c := range s.Ch {
		ch := &s.Ch[c]
		ch.Perf = NewChannelModel(sp.ChBandwidth, sp.FWChXferLat)
		ch.LUN = make([]LUN, sp.LUNsPerCh)
		for l := range ch.LUN {
			lun := &ch.LUN[l]
			lun.Pl = make([]Plane, sp.PlsPerLUN)
			for p := range lun.Pl {
				pl := &lun.Pl[p]
				pl.Blk = make([]Block, sp.BlksPerPl)
				for b := range pl.Blk {
					blk := &pl.Blk[b]
					blk.Pg = make([]Page, sp.PgsPerBlk)
					for g := range blk.Pg {
						pg := &blk.Pg[g]
						pg.Status = PgFree
						pg.Sec = make([]uint8, sp.SecsPerPg)
						for k := range pg.Sec {
							pg.Sec[k] = SecFree
						}
					}
				}
			}
		}
	}

	return s
}

// ChOf returns the channel a PPA lives on.
func (s *SSD) ChOf(ppa PPA) *Channel {
	return &s.Ch[ppa.Ch()]
}

// LUNOf returns the LUN a PPA lives on.
func (s *SSD) LUNOf(ppa PPA) *LUN {
	return &s.ChOf(ppa).LUN[ppa.LUN()]
}

// PlaneOf returns the plane a PPA lives on.
func (s *SSD) PlaneOf(ppa PPA) *Plane {
	return &s.LUNOf(ppa).Pl[ppa.Plane()]
}

// BlkOf returns the block a PPA lives in.
func (s *SSD) BlkOf(ppa PPA) *Block {
	return &s.PlaneOf(ppa).Blk[ppa.Blk()]
}

// PageOf returns the page a PPA names.
func (s *SSD) PageOf(ppa PPA) *Page {
	return &s.BlkOf(ppa).Pg[ppa.Pg()]
}
