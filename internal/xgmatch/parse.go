// Package xgmatch decodes the record stream inside an XG archive into
// matches, games and actions.
package xgmatch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"unicode/utf16"

	"github.com/dmmcquay/gammon-mcp/internal/xgarc"
)

// RecordSize is the fixed size of every record in the game data.
const RecordSize = 2560

const tagOffset = 8

// Record tags.
const (
	TagMatchHeader = 0
	TagGameHeader  = 1
	TagCube        = 2
	TagMove        = 3
	TagGameFooter  = 4
	TagMatchFooter = 5
)

const (
	unlimitedMatchLength = 99999

	// Files from version 24 on carry UTF-16 names after the fixed header.
	unicodeNamesVersion = 24
	unicodePlayer1      = 612 + 8 + 2 + 258
	unicodeNameUnits    = 129
	unicodeNameBytes    = unicodeNameUnits * 2
)

var ErrNoMatchHeader = errors.New("no match header found in file")

// Parse decodes game data extracted by xgarc.ReadArchive. Move and cube
// records outside a game are dropped, a game header without a preceding
// footer discards the unfinished game, and unknown tags are ignored.
func Parse(data []byte) (*ParsedMatch, error) {
	var (
		match   *MatchInfo
		games   []Game
		current *Game
	)

	for off := 0; off+RecordSize <= len(data); off += RecordSize {
		rec := record(data[off : off+RecordSize])

		switch rec[tagOffset] {
		case TagMatchHeader:
			m := parseMatchHeader(rec)
			match = &m

		case TagGameHeader:
			current = &Game{Header: parseGameHeader(rec), Actions: []Action{}}

		case TagMove:
			if current != nil {
				current.Actions = append(current.Actions, parseMove(rec))
			}

		case TagCube:
			if current != nil {
				// Cube records without a double only mark the cube position.
				if c := parseCube(rec); c.Double {
					current.Actions = append(current.Actions, c)
				}
			}

		case TagGameFooter:
			if current != nil {
				f := parseGameFooter(rec)
				current.Footer = &f
				games = append(games, *current)
				current = nil
			}

		case TagMatchFooter:
		}
	}

	if match == nil {
		return nil, ErrNoMatchHeader
	}
	if games == nil {
		games = []Game{}
	}
	return &ParsedMatch{Match: *match, Games: games}, nil
}

// ParseArchive extracts the game data from a container and parses it.
func ParseArchive(archive []byte) (*ParsedMatch, error) {
	data, err := xgarc.ReadArchive(archive)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ParseFile reads and parses an .xg file from disk.
func ParseFile(path string) (*ParsedMatch, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseArchive(b)
}

// record is one fixed-size record with little-endian accessors.
type record []byte

func (r record) i32(off int) int {
	return int(int32(binary.LittleEndian.Uint32(r[off:])))
}

func (r record) u32(off int) uint32 {
	return binary.LittleEndian.Uint32(r[off:])
}

func (r record) flag(off int) bool {
	return r[off] != 0
}

// utf16 reads a NUL-terminated UTF-16LE string of at most units code units.
func (r record) utf16(off, units int) string {
	buf := make([]uint16, 0, units)
	for i := 0; i < units; i++ {
		c := binary.LittleEndian.Uint16(r[off+2*i:])
		if c == 0 {
			break
		}
		buf = append(buf, c)
	}
	return string(utf16.Decode(buf))
}

func parseMatchHeader(r record) MatchInfo {
	m := MatchInfo{
		Player1:     xgarc.ShortString(r[9 : 9+41]),
		Player2:     xgarc.ShortString(r[50 : 50+41]),
		MatchLength: r.i32(92),
		Crawford:    r.flag(100),
		Jacoby:      r.flag(101),
		Version:     r.i32(552),
		Magic:       r.u32(556),
	}
	if m.MatchLength == unlimitedMatchLength {
		m.MatchLength = 0
	}
	if m.Version >= unicodeNamesVersion {
		if p1 := r.utf16(unicodePlayer1, unicodeNameUnits); p1 != "" {
			m.Player1 = p1
		}
		if p2 := r.utf16(unicodePlayer1+unicodeNameBytes, unicodeNameUnits); p2 != "" {
			m.Player2 = p2
		}
	}
	return m
}

func parseGameHeader(r record) GameHeader {
	return GameHeader{
		Score1:          r.i32(12),
		Score2:          r.i32(16),
		CrawfordApplies: r.flag(20),
		GameNumber:      r.i32(48),
	}
}

func parseMove(r record) MoveAction {
	m := MoveAction{
		ActivePlayer: r.i32(64),
		Dice:         [2]int{r.i32(100), r.i32(104)},
		CubeA:        r.i32(108),
	}
	for i := range m.Moves {
		m.Moves[i] = r.i32(68 + 4*i)
	}
	return m
}

func parseCube(r record) CubeAction {
	return CubeAction{
		ActivePlayer: r.i32(12),
		Double:       r.i32(16) == 1,
		Take:         TakeResponse(r.i32(20)),
		Beaver:       r.i32(24),
		Raccoon:      r.i32(28),
		CubeBefore:   r.i32(32),
	}
}

func parseGameFooter(r record) GameFooter {
	return GameFooter{
		Winner:      r.i32(24),
		PointsWon:   r.i32(28),
		Termination: r.i32(32),
	}
}
