package posid

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dmmcquay/gammon-mcp/internal/board"
)

const ogidMinFields = 3

// OGID field indexes.
const (
	ogidFieldX = iota
	ogidFieldO
	ogidFieldCube
	ogidFieldDice
	ogidFieldTurn
	ogidFieldGameState
	ogidFieldScoreX
	ogidFieldScoreO
	ogidFieldMatch
	ogidFieldMoveID
	ogidNumFields
)

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// DecodeOGID parses an OpenGammon position ID. Fields past the cube token are
// optional and parsed leniently.
func DecodeOGID(text string) (*board.Board, board.Metadata, error) {
	s := stripPrefix(strings.TrimSpace(text), "OGID=")
	parts := strings.Split(s, ":")
	if len(parts) < ogidMinFields {
		return nil, board.Metadata{}, fmt.Errorf("%w: expected at least %d colon-separated fields, got %d",
			ErrMalformedOGID, ogidMinFields, len(parts))
	}

	b := board.NewBoard()
	for _, side := range []struct {
		field string
		sign  int
	}{
		{parts[ogidFieldX], 1},
		{parts[ogidFieldO], -1},
	} {
		for i := 0; i < len(side.field); i++ {
			pt, err := ogidPoint(side.field[i])
			if err != nil {
				return nil, board.Metadata{}, err
			}
			b.Points[pt] += side.sign
		}
	}
	b.DeriveOffCounts()

	cube := parts[ogidFieldCube]
	if !ogidCubePattern.MatchString(cube) {
		return nil, board.Metadata{}, fmt.Errorf("%w: invalid cube token %q", ErrMalformedOGID, cube)
	}

	meta := board.DefaultMetadata()
	meta.CubeValue = 1 << int(cube[1]-'0')
	switch cube[0] {
	case 'W':
		meta.CubeOwner = board.CubeOwnedByX
	case 'B':
		meta.CubeOwner = board.CubeOwnedByO
	default:
		meta.CubeOwner = board.CubeCentered
	}

	field := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}

	if d := field(ogidFieldDice); d != "" {
		meta.Dice = parseDicePair(d)
	}
	if strings.EqualFold(field(ogidFieldTurn), "W") {
		meta.OnRoll = board.SideX
	}
	meta.ScoreX = lenientInt(field(ogidFieldScoreX))
	meta.ScoreO = lenientInt(field(ogidFieldScoreO))
	if ml := field(ogidFieldMatch); ml != "" {
		meta.MatchLength = lenientInt(ml)
		meta.Crawford = strings.Contains(ml, "C")
	}

	return b, meta, nil
}

// EncodeOGID renders b and meta as an OGID string. The game state and move ID
// fields are left empty.
func EncodeOGID(b *board.Board, meta board.Metadata) string {
	var xs, ocs []byte
	for pt, n := range b.Points {
		ch := ogidChar(pt)
		for ; n > 0; n-- {
			xs = append(xs, ch)
		}
		for ; n < 0; n++ {
			ocs = append(ocs, ch)
		}
	}
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	sort.Slice(ocs, func(i, j int) bool { return ocs[i] < ocs[j] })

	owner := "N"
	switch meta.CubeOwner {
	case board.CubeOwnedByX:
		owner = "W"
	case board.CubeOwnedByO:
		owner = "B"
	}

	dice := ""
	if meta.Dice.Rolled() {
		dice = meta.Dice.String()
	}

	turn := "B"
	if meta.OnRoll == board.SideX {
		turn = "W"
	}

	match := strconv.Itoa(meta.MatchLength)
	if meta.Crawford {
		match += "C"
	}

	fields := make([]string, ogidNumFields)
	fields[ogidFieldX] = string(xs)
	fields[ogidFieldO] = string(ocs)
	fields[ogidFieldCube] = fmt.Sprintf("%s%dN", owner, meta.CubeLog())
	fields[ogidFieldDice] = dice
	fields[ogidFieldTurn] = turn
	fields[ogidFieldScoreX] = strconv.Itoa(meta.ScoreX)
	fields[ogidFieldScoreO] = strconv.Itoa(meta.ScoreO)
	fields[ogidFieldMatch] = match
	return strings.Join(fields, ":")
}

func ogidPoint(ch byte) (int, error) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), nil
	case ch >= 'a' && ch <= 'p':
		return int(ch-'a') + 10, nil
	}
	return 0, fmt.Errorf("%w: invalid position character %q", ErrMalformedOGID, ch)
}

func ogidChar(pt int) byte {
	if pt <= 9 {
		return byte('0' + pt)
	}
	return byte('a' + pt - 10)
}

// lenientInt returns the leading decimal digits of s, or 0.
func lenientInt(s string) int {
	m := leadingDigits.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
