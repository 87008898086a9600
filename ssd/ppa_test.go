package ssd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPPAPackUnpack(t *testing.T) {
	tests := []struct {
		name                 string
		ch, lun, pl, blk, pg int
	}{
		{name: "origin", ch: 0, lun: 0, pl: 0, blk: 0, pg: 0},
		{name: "mixed", ch: 3, lun: 1, pl: 0, blk: 2047, pg: 383},
		{name: "field maxima", ch: 255, lun: 255, pl: 255, blk: 65535, pg: 65535},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ppa := NewPPA(tc.ch, tc.lun, tc.pl, tc.blk, tc.pg)
			assert.Equal(t, tc.ch, ppa.Ch())
			assert.Equal(t, tc.lun, ppa.LUN())
			assert.Equal(t, tc.pl, ppa.Plane())
			assert.Equal(t, tc.blk, ppa.Blk())
			assert.Equal(t, tc.pg, ppa.Pg())
		})
	}
}

func TestPPASentinel(t *testing.T) {
	assert.False(t, UnmappedPPA.Mapped())
	assert.True(t, NewPPA(0, 0, 0, 0, 0).Mapped())
}

func TestPPABlkInSSD(t *testing.T) {
	a := NewPPA(2, 1, 0, 77, 5)
	b := NewPPA(2, 1, 0, 77, 300) // same block, different page
	c := NewPPA(3, 1, 0, 77, 5)   // same block id, different channel

	assert.Equal(t, a.BlkInSSD(), b.BlkInSSD())
	assert.NotEqual(t, a.BlkInSSD(), c.BlkInSSD())
}

func TestPPAWith(t *testing.T) {
	ppa := NewPPA(1, 1, 0, 10, 4)

	assert.Equal(t, 9, ppa.WithPg(9).Pg())
	assert.Equal(t, 1, ppa.WithPg(9).Ch(), "page update must not disturb channel")
	assert.Equal(t, 3, ppa.WithCh(3).Ch())
	assert.Equal(t, 10, ppa.WithCh(3).Blk())
	assert.Equal(t, 0, ppa.WithLUN(0).LUN())
	assert.Equal(t, 4, ppa.WithLUN(0).Pg())
}
