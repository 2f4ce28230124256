// Package board holds the canonical backgammon position used by every codec.
//
// Points are indexed 0..25. Index 0 is the bar of the upper player (X),
// 1..24 are board points (1 is the lower player's home edge, 24 the upper
// player's), and 25 is the bar of the lower player (O). Positive counts are X
// checkers, negative counts are O checkers.
package board

import "fmt"

const (
	// NumSlots is the number of entries in Board.Points.
	NumSlots = 26
	// BarX is the slot holding X's hit checkers.
	BarX = 0
	// BarO is the slot holding O's hit checkers.
	BarO = 25
	// CheckersPerSide is the number of checkers each player owns.
	CheckersPerSide = 15

	barDistance = 25
)

// Board is a position: checker counts per slot plus borne-off totals.
type Board struct {
	Points [NumSlots]int `json:"points"`
	OffX   int           `json:"offX"`
	OffO   int           `json:"offO"`
}

// Pips holds the pip count of each side.
type Pips struct {
	X int `json:"x"`
	O int `json:"o"`
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// StartingPosition returns the standard opening layout with both sides on
// their 24, 13, 8 and 6 points.
func StartingPosition() *Board {
	b := NewBoard()
	b.Points[1] = 2
	b.Points[12] = 5
	b.Points[17] = 3
	b.Points[19] = 5

	b.Points[24] = -2
	b.Points[13] = -5
	b.Points[8] = -3
	b.Points[6] = -5
	b.DeriveOffCounts()
	return b
}

// DeriveOffCounts recomputes OffX and OffO from the checkers on the board.
// A board holding more than 15 checkers of one side yields a negative count;
// that is left for callers to report.
func (b *Board) DeriveOffCounts() {
	var x, o int
	for _, n := range b.Points {
		switch {
		case n > 0:
			x += n
		case n < 0:
			o -= n
		}
	}
	b.OffX = CheckersPerSide - x
	b.OffO = CheckersPerSide - o
}

// PipCounts returns the distance each side still has to travel.
// X moves toward point 24, O toward point 1; a checker on the bar counts 25.
func (b *Board) PipCounts() Pips {
	var p Pips
	for pt := 1; pt <= 24; pt++ {
		n := b.Points[pt]
		if n > 0 {
			p.X += (25 - pt) * n
		} else if n < 0 {
			p.O += pt * -n
		}
	}
	if n := b.Points[BarX]; n > 0 {
		p.X += barDistance * n
	}
	if n := b.Points[BarO]; n < 0 {
		p.O += barDistance * -n
	}
	return p
}

// CheckerCounts returns the number of on-board checkers for X and O.
func (b *Board) CheckerCounts() (x, o int) {
	for _, n := range b.Points {
		if n > 0 {
			x += n
		} else {
			o -= n
		}
	}
	return x, o
}

// Validate reports a board whose derived off counts are negative, which
// means the source held more than 15 checkers for a side.
func (b *Board) Validate() error {
	if b.OffX < 0 {
		return fmt.Errorf("X has %d checkers on the board, more than %d", CheckersPerSide-b.OffX, CheckersPerSide)
	}
	if b.OffO < 0 {
		return fmt.Errorf("O has %d checkers on the board, more than %d", CheckersPerSide-b.OffO, CheckersPerSide)
	}
	return nil
}
