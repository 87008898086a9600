package ssd

import "sync"

// ChannelModel is a serializing bandwidth model: transfers queue behind
// a next-available-time accumulator and each takes length/bandwidth to
// move. The same model serves NAND channels (one per channel, touched by
// a single partition) and the PCIe link (one instance shared by every
// partition, hence the lock).
type ChannelModel struct {
	mu        sync.Mutex
	bandwidth uint64 // MiB/s
	xferLat   uint64 // fixed per-transfer overhead (ns)
	nextAvail uint64
}

// NewChannelModel builds a model for a link of the given bandwidth in
// MiB/s with a fixed per-transfer latency in ns.
func NewChannelModel(bandwidthMiB uint64, xferLat uint64) *ChannelModel {
	return &ChannelModel{
		bandwidth: bandwidthMiB,
		xferLat:   xferLat,
	}
}

// XferTime returns how long moving length bytes takes at full bandwidth.
func (m *ChannelModel) XferTime(length uint64) uint64 {
	return m.xferLat + length*1_000_000_000/(m.bandwidth*MB)
}

// Transfer schedules a transfer of length bytes requested at reqTime and
// returns its completion time, advancing the link's availability.
func (m *ChannelModel) Transfer(reqTime, length uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := reqTime
	if m.nextAvail > start {
		start = m.nextAvail
	}
	end := start + m.XferTime(length)
	m.nextAvail = end
	return end
}
