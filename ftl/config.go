package ftl

import (
	"math/rand"
	"time"
)

// GC victim-selection policies, runtime selectable.
const (
	GCModeGreedy      = 0
	GCModeCostBenefit = 1
	GCModeRandom      = 2
)

// CoreConfig carries the knobs that were process-wide in earlier
// incarnations of this code. One instance is shared by every partition
// of a namespace.
type CoreConfig struct {
	GCMode    int
	DebugMode int // 1 enables hot/cold victim statistics

	// EnableGCDelay simulates the NAND traffic of GC page copies. When
	// nil it defaults to on.
	EnableGCDelay *bool

	// GC trigger thresholds, in free lines.
	GCThresLines     int
	GCThresLinesHigh int

	// Greedy skips victims whose vpc exceeds pgs_per_line divided by
	// this. Zero means the default of 8.
	GreedyThresDiv int

	// Rand drives the Random policy. Seeded deterministically in tests.
	Rand *rand.Rand

	// Now supplies monotonic nanoseconds for line aging.
	Now func() uint64
}

// convParams is the per-namespace view of the config with every default
// resolved.
type convParams struct {
	gcThresLines     int
	gcThresLinesHigh int
	enableGCDelay    bool
	opAreaPercent    float64
	pbaPcent         int // (physical space / logical space) * 100
}

func (c *CoreConfig) withDefaults() *CoreConfig {
	out := *c
	if out.GCThresLines == 0 {
		out.GCThresLines = 2 // one line for host writes, one for GC
	}
	if out.GCThresLinesHigh == 0 {
		out.GCThresLinesHigh = 2
	}
	if out.GreedyThresDiv == 0 {
		out.GreedyThresDiv = 8
	}
	if out.EnableGCDelay == nil {
		on := true
		out.EnableGCDelay = &on
	}
	if out.Rand == nil {
		out.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if out.Now == nil {
		start := time.Now()
		out.Now = func() uint64 {
			return uint64(time.Since(start).Nanoseconds())
		}
	}
	return &out
}

func newConvParams(cfg *CoreConfig, opAreaPercent float64) convParams {
	return convParams{
		gcThresLines:     cfg.GCThresLines,
		gcThresLinesHigh: cfg.GCThresLinesHigh,
		enableGCDelay:    *cfg.EnableGCDelay,
		opAreaPercent:    opAreaPercent,
		pbaPcent:         int((1 + opAreaPercent) * 100),
	}
}
