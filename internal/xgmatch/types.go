package xgmatch

import "fmt"

// MatchInfo is the global match header.
type MatchInfo struct {
	Player1     string `json:"player1"`
	Player2     string `json:"player2"`
	MatchLength int    `json:"matchLength"` // 0 = unlimited
	Crawford    bool   `json:"crawford"`
	Jacoby      bool   `json:"jacoby"`
	Version     int    `json:"version"`
	Magic       uint32 `json:"magic"`
}

// GameHeader holds the pre-game state of one game.
type GameHeader struct {
	Score1          int  `json:"score1"`
	Score2          int  `json:"score2"`
	CrawfordApplies bool `json:"crawfordApplies"`
	GameNumber      int  `json:"gameNumber"`
}

// GameFooter is how a game ended.
type GameFooter struct {
	Winner      int `json:"winner"`
	PointsWon   int `json:"pointsWon"`
	Termination int `json:"termination"`
}

// Game is one game of a match. Actions are in turn order.
type Game struct {
	Header  GameHeader  `json:"header"`
	Actions []Action    `json:"actions"`
	Footer  *GameFooter `json:"footer,omitempty"`
}

// ParsedMatch is the decoded event stream of one archive.
type ParsedMatch struct {
	Match MatchInfo `json:"match"`
	Games []Game    `json:"games"`
}

// ActionKind tags an Action.
type ActionKind int

const (
	ActionMove ActionKind = iota
	ActionCube
)

func (k ActionKind) String() string {
	if k == ActionCube {
		return "cube"
	}
	return "move"
}

// MarshalText renders the kind as "move" or "cube".
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is a MoveAction or a CubeAction.
type Action interface {
	Kind() ActionKind
	Player() int
}

// MaxSubMoves is the number of from/to pairs a move record can hold.
const MaxSubMoves = 4

// MoveAction is a checker play. Moves holds up to four from/to pairs in
// record coordinates: 0-based points, -1 ends the list early.
type MoveAction struct {
	ActivePlayer int                  `json:"activePlayer"`
	Dice         [2]int               `json:"dice"`
	Moves        [2 * MaxSubMoves]int `json:"moves"`
	CubeA        int                  `json:"cubeA"`
}

func (m MoveAction) Kind() ActionKind { return ActionMove }
func (m MoveAction) Player() int      { return m.ActivePlayer }

// SubMove is one checker moved from one point to another.
type SubMove struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SubMoves returns the played pairs, stopping at the first -1 and skipping
// pairs that do not move a checker.
func (m MoveAction) SubMoves() []SubMove {
	var out []SubMove
	for i := 0; i+1 < len(m.Moves); i += 2 {
		from, to := m.Moves[i], m.Moves[i+1]
		if from == -1 {
			break
		}
		if from == to {
			continue
		}
		out = append(out, SubMove{From: from, To: to})
	}
	return out
}

// TakeResponse is the answer to a double.
type TakeResponse int

const (
	Drops   TakeResponse = 0
	Takes   TakeResponse = 1
	Beavers TakeResponse = 2
)

func (r TakeResponse) String() string {
	switch r {
	case Drops:
		return "Drops"
	case Takes:
		return "Takes"
	case Beavers:
		return "Beavers"
	}
	return fmt.Sprintf("TakeResponse(%d)", int(r))
}

// Known reports whether r is one of the three recorded responses.
func (r TakeResponse) Known() bool {
	return r == Drops || r == Takes || r == Beavers
}

// CubeAction is a double and its response. CubeBefore is the record's cube
// field: 0 for a centered cube, otherwise a signed log2 of the value.
type CubeAction struct {
	ActivePlayer int          `json:"activePlayer"`
	Double       bool         `json:"double"`
	Take         TakeResponse `json:"take"`
	Beaver       int          `json:"beaver"`
	Raccoon      int          `json:"raccoon"`
	CubeBefore   int          `json:"cubeBefore"`
}

func (c CubeAction) Kind() ActionKind { return ActionCube }
func (c CubeAction) Player() int      { return c.ActivePlayer }

// NewCubeValue is the cube value after the double is accepted.
func (c CubeAction) NewCubeValue() int {
	if c.CubeBefore == 0 {
		return 2
	}
	n := c.CubeBefore
	if n < 0 {
		n = -n
	}
	return 1 << (n + 1)
}
