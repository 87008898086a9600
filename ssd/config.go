package ssd

// Unit helpers.
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// DeviceClass selects one fixed geometry/latency profile. One class per
// emulated device; the conventional FTL uses the 970 PRO profile.
type DeviceClass int

const (
	Samsung970Pro DeviceClass = iota
)

// Cell modes.
const (
	CellModeUnknown = 0
	CellModeSLC     = 1
	CellModeMLC     = 2
	CellModeTLC     = 3
)

// Cell types within a wordline. TLC alternates LSB/MSB/CSB pages, which
// is what makes read latency asymmetric across pages of one flash page.
const (
	CellTypeLSB = iota
	CellTypeMSB
	CellTypeCSB
	MaxCellTypes
)

// Config is the immutable spec sheet of a device class. All latencies
// are nanoseconds, all bandwidths MiB/s.
type Config struct {
	LBASize int
	PageSz  int // FTL mapping unit

	NandChannels  int
	LUNsPerCh     int
	PlanesPerLUN  int
	BlksPerPlane  int
	FlashPageSize int // physical read unit (tR)
	OneshotPgSize int // physical program unit (tPROG), wordline
	CellMode      int

	MaxChXferSize int
	WriteUnitSize int

	ChBandwidth   uint64
	PCIeBandwidth uint64

	Read4KLat [MaxCellTypes]uint64
	ReadLat   [MaxCellTypes]uint64
	ProgLat   uint64
	EraseLat  uint64

	FW4KReadLat uint64
	FWReadLat   uint64
	FWWBufLat0  uint64
	FWWBufLat1  uint64
	FWChXferLat uint64

	WriteBufferSize      uint64
	WriteEarlyCompletion bool
	OPAreaPercent        float64
}

// ConfigFor returns the spec sheet for a device class.
func ConfigFor(class DeviceClass) Config {
	switch class {
	case Samsung970Pro:
		return Config{
			LBASize: 512,
			PageSz:  4 * KB,

			NandChannels:  4,
			LUNsPerCh:     2,
			PlanesPerLUN:  1,
			BlksPerPlane:  2048,
			FlashPageSize: 16 * KB,
			OneshotPgSize: 48 * KB, // three flash pages per TLC one-shot program
			CellMode:      CellModeTLC,

			MaxChXferSize: 16 * KB,
			WriteUnitSize: 512,

			ChBandwidth:   800,
			PCIeBandwidth: 3360,

			Read4KLat: [MaxCellTypes]uint64{
				CellTypeLSB: 35760 - 6000,
				CellTypeMSB: 35760 + 6000,
				CellTypeCSB: 35760,
			},
			ReadLat: [MaxCellTypes]uint64{
				CellTypeLSB: 36013 - 6000,
				CellTypeMSB: 36013 + 6000,
				CellTypeCSB: 36013,
			},
			ProgLat:  185000,
			EraseLat: 0,

			FW4KReadLat: 21500,
			FWReadLat:   30490,
			FWWBufLat0:  4000,
			FWWBufLat1:  460,
			FWChXferLat: 0,

			WriteBufferSize:      4 * 2 * 48 * KB * 2, // nchs * luns * oneshot * 2
			WriteEarlyCompletion: true,
			OPAreaPercent:        0.07,
		}
	}
	panic("ssd: unknown device class")
}
