package board

import "fmt"

// Side identifies a player. The zero value is O, the lower player.
type Side int

const (
	SideO Side = iota
	SideX
)

func (s Side) String() string {
	if s == SideX {
		return "X"
	}
	return "O"
}

// MarshalText renders the side as "X" or "O".
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideX {
		return SideO
	}
	return SideX
}

// CubeOwner is who may redouble next.
type CubeOwner int

const (
	CubeCentered CubeOwner = iota
	CubeOwnedByX
	CubeOwnedByO
)

func (c CubeOwner) String() string {
	switch c {
	case CubeOwnedByX:
		return "x_owns"
	case CubeOwnedByO:
		return "o_owns"
	default:
		return "centered"
	}
}

// MarshalText renders the owner as "centered", "x_owns" or "o_owns".
func (c CubeOwner) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Dice is a roll. The zero value means no dice have been rolled.
type Dice [2]int

// Rolled reports whether both dice carry a value.
func (d Dice) Rolled() bool {
	return d[0] > 0 && d[1] > 0
}

func (d Dice) String() string {
	if !d.Rolled() {
		return "00"
	}
	return fmt.Sprintf("%d%d", d[0], d[1])
}

// Metadata is the match and game context that travels with a position.
type Metadata struct {
	CubeValue   int       `json:"cubeValue"`
	CubeOwner   CubeOwner `json:"cubeOwner"`
	OnRoll      Side      `json:"onRoll"`
	Dice        Dice      `json:"dice"`
	ScoreX      int       `json:"scoreX"`
	ScoreO      int       `json:"scoreO"`
	MatchLength int       `json:"matchLength"` // 0 = unlimited
	Crawford    bool      `json:"crawford"`
}

// DefaultMetadata is a money game with a centered cube and O on roll.
func DefaultMetadata() Metadata {
	return Metadata{
		CubeValue: 1,
		CubeOwner: CubeCentered,
		OnRoll:    SideO,
	}
}

// CubeLog returns floor(log2(CubeValue)), treating values below 2 as 0.
func (m Metadata) CubeLog() int {
	n := 0
	for v := m.CubeValue; v > 1; v /= 2 {
		n++
	}
	return n
}
