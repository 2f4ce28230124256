package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBoardIsEmpty(t *testing.T) {
	b := NewBoard()
	for i, n := range b.Points {
		assert.Zero(t, n, "slot %d", i)
	}
	assert.Zero(t, b.OffX)
	assert.Zero(t, b.OffO)
}

func TestStartingPosition(t *testing.T) {
	b := StartingPosition()

	pips := b.PipCounts()
	assert.Equal(t, 167, pips.X)
	assert.Equal(t, 167, pips.O)
	assert.Equal(t, 0, b.OffX)
	assert.Equal(t, 0, b.OffO)
	assert.NoError(t, b.Validate())
}

func TestDeriveOffCounts(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(b *Board)
		wantOffX int
		wantOffO int
	}{
		{
			name:     "empty board has everything off",
			setup:    func(b *Board) {},
			wantOffX: 15,
			wantOffO: 15,
		},
		{
			name: "bar checkers count as on board",
			setup: func(b *Board) {
				b.Points[BarX] = 2
				b.Points[BarO] = -3
				b.Points[20] = 4
			},
			wantOffX: 9,
			wantOffO: 12,
		},
		{
			name: "too many checkers go negative",
			setup: func(b *Board) {
				b.Points[5] = 16
			},
			wantOffX: -1,
			wantOffO: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard()
			tt.setup(b)
			b.DeriveOffCounts()
			assert.Equal(t, tt.wantOffX, b.OffX)
			assert.Equal(t, tt.wantOffO, b.OffO)
		})
	}
}

func TestPipCountsBar(t *testing.T) {
	b := NewBoard()
	b.Points[BarX] = 1
	b.Points[BarO] = -2
	b.Points[24] = 1  // X needs 1 pip
	b.Points[1] = -1  // O needs 1 pip
	b.Points[10] = -1 // O needs 10 pips

	pips := b.PipCounts()
	assert.Equal(t, 26, pips.X)
	assert.Equal(t, 61, pips.O)
}

func TestValidate(t *testing.T) {
	b := NewBoard()
	b.Points[3] = -16
	b.DeriveOffCounts()
	assert.Error(t, b.Validate())
}

func TestMetadataHelpers(t *testing.T) {
	m := DefaultMetadata()
	assert.Equal(t, 0, m.CubeLog())

	m.CubeValue = 8
	assert.Equal(t, 3, m.CubeLog())

	assert.False(t, Dice{}.Rolled())
	assert.Equal(t, "00", Dice{}.String())
	assert.Equal(t, "31", Dice{3, 1}.String())

	assert.Equal(t, SideX, SideO.Opponent())
	assert.Equal(t, "x_owns", CubeOwnedByX.String())
}
