package posid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmmcquay/gammon-mcp/internal/board"
)

const (
	xgidMinFields   = 9
	xgidPositionLen = 26
	xgidMaxCount    = 16
	xgidMaxCubeLog  = 8
)

// xgidFields are the integer fields after the position string, by index.
var xgidFields = []struct {
	index int
	name  string
}{
	{1, "cube value"},
	{2, "cube position"},
	{3, "turn"},
	{5, "first score"},
	{6, "second score"},
	{7, "crawford/jacoby"},
	{8, "match length"},
}

// DecodeXGID parses an eXtreme Gammon position ID.
//
// When the turn field is -1 the position string, the cube sign and the two
// scores are read mirrored, so the returned board and metadata always use the
// same X/O assignment as a turn +1 ID.
func DecodeXGID(text string) (*board.Board, board.Metadata, error) {
	s := stripPrefix(strings.TrimSpace(text), "XGID=")
	parts := strings.Split(s, ":")
	if len(parts) < xgidMinFields {
		return nil, board.Metadata{}, fmt.Errorf("%w: expected at least %d colon-separated fields, got %d",
			ErrMalformedXGID, xgidMinFields, len(parts))
	}

	posStr := parts[0]
	if len(posStr) != xgidPositionLen {
		return nil, board.Metadata{}, fmt.Errorf("%w: position string must be %d characters, got %d",
			ErrMalformedXGID, xgidPositionLen, len(posStr))
	}

	vals := make(map[int]int, len(xgidFields))
	for _, f := range xgidFields {
		v, err := strconv.Atoi(strings.TrimSpace(parts[f.index]))
		if err != nil {
			return nil, board.Metadata{}, fmt.Errorf("%w: invalid %s field %q", ErrMalformedXGID, f.name, parts[f.index])
		}
		vals[f.index] = v
	}

	cubeLog, cubePos, turn := vals[1], vals[2], vals[3]
	scoreO, scoreX := vals[5], vals[6]

	if turn != 1 && turn != -1 {
		return nil, board.Metadata{}, fmt.Errorf("%w: turn must be 1 or -1, got %d", ErrMalformedXGID, turn)
	}
	if cubeLog > 30 {
		return nil, board.Metadata{}, fmt.Errorf("%w: cube value 2^%d out of range", ErrMalformedXGID, cubeLog)
	}

	b := board.NewBoard()
	for i := 0; i < xgidPositionLen; i++ {
		n, err := xgidCheckerCount(posStr[i], turn)
		if err != nil {
			return nil, board.Metadata{}, err
		}
		b.Points[xgidSlot(i, turn)] = n
	}
	b.DeriveOffCounts()

	if turn == -1 {
		cubePos = -cubePos
		scoreX, scoreO = scoreO, scoreX
	}

	meta := board.Metadata{
		CubeValue:   1,
		CubeOwner:   board.CubeCentered,
		OnRoll:      board.SideO,
		ScoreX:      scoreX,
		ScoreO:      scoreO,
		MatchLength: vals[8],
		Crawford:    vals[7] == 1,
		Dice:        parseDicePair(strings.ToUpper(strings.TrimSpace(parts[4]))),
	}
	if cubeLog >= 0 {
		meta.CubeValue = 1 << cubeLog
	}
	switch cubePos {
	case 0:
		meta.CubeOwner = board.CubeCentered
	case -1:
		meta.CubeOwner = board.CubeOwnedByX
	default:
		meta.CubeOwner = board.CubeOwnedByO
	}
	if turn == -1 {
		meta.OnRoll = board.SideX
	}

	return b, meta, nil
}

// EncodeXGID renders b and meta as an XGID string. X on roll is written with
// turn -1 and the mirrored layout DecodeXGID undoes.
func EncodeXGID(b *board.Board, meta board.Metadata) string {
	turn := 1
	if meta.OnRoll == board.SideX {
		turn = -1
	}

	chars := make([]byte, xgidPositionLen)
	for i := 0; i < xgidPositionLen; i++ {
		chars[i] = xgidCheckerChar(b.Points[xgidSlot(i, turn)], turn)
	}

	cubePos := 0
	switch meta.CubeOwner {
	case board.CubeOwnedByX:
		cubePos = -1
	case board.CubeOwnedByO:
		cubePos = 1
	}
	scoreO, scoreX := meta.ScoreO, meta.ScoreX
	if turn == -1 {
		cubePos = -cubePos
		scoreO, scoreX = scoreX, scoreO
	}

	crawford := 0
	if meta.Crawford {
		crawford = 1
	}

	return fmt.Sprintf("XGID=%s:%d:%d:%d:%s:%d:%d:%d:%d:%d",
		chars, meta.CubeLog(), cubePos, turn, meta.Dice.String(),
		scoreO, scoreX, crawford, meta.MatchLength, xgidMaxCubeLog)
}

// xgidSlot maps a character index in the position string to a board slot.
func xgidSlot(i, turn int) int {
	if turn == -1 {
		return board.NumSlots - 1 - i
	}
	return i
}

func xgidCheckerCount(ch byte, turn int) (int, error) {
	var count, sign int
	switch {
	case ch == '-':
		return 0, nil
	case ch >= 'a' && ch <= 'p':
		count, sign = int(ch-'a')+1, 1
	case ch >= 'A' && ch <= 'P':
		count, sign = int(ch-'A')+1, -1
	default:
		return 0, fmt.Errorf("%w: invalid position character %q", ErrMalformedXGID, ch)
	}
	return sign * turn * count, nil
}

func xgidCheckerChar(n, turn int) byte {
	if n == 0 {
		return '-'
	}
	count := n
	if count < 0 {
		count = -count
	}
	if count > xgidMaxCount {
		count = xgidMaxCount
	}
	if n*turn > 0 {
		return byte('a' + count - 1)
	}
	return byte('A' + count - 1)
}
