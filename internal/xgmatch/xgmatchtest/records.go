// Package xgmatchtest writes XG game-data records for tests.
package xgmatchtest

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/dmmcquay/gammon-mcp/internal/xgmatch"
)

// Stream accumulates records in order.
type Stream struct {
	buf []byte
}

// Match describes a match header record.
type Match struct {
	Player1, Player2   string
	Unicode1, Unicode2 string // written only when Version >= 24
	MatchLength        int
	Crawford, Jacoby   bool
	Version            int
}

func (s *Stream) next(tag byte) []byte {
	rec := make([]byte, xgmatch.RecordSize)
	rec[8] = tag
	s.buf = append(s.buf, rec...)
	return s.buf[len(s.buf)-xgmatch.RecordSize:]
}

func putI32(rec []byte, off, v int) {
	binary.LittleEndian.PutUint32(rec[off:], uint32(int32(v)))
}

func putBool(rec []byte, off int, v bool) {
	if v {
		rec[off] = 1
	}
}

func putShortString(field []byte, s string) {
	n := min(len(s), len(field)-1)
	field[0] = byte(n)
	copy(field[1:], s[:n])
}

func putUTF16(rec []byte, off int, s string) {
	for i, u := range utf16.Encode([]rune(s)) {
		if i >= 128 {
			break
		}
		binary.LittleEndian.PutUint16(rec[off+2*i:], u)
	}
}

// MatchHeader appends a match header. The DMLI marker is always written.
func (s *Stream) MatchHeader(m Match) *Stream {
	rec := s.next(xgmatch.TagMatchHeader)
	putShortString(rec[9:50], m.Player1)
	putShortString(rec[50:91], m.Player2)
	putI32(rec, 92, m.MatchLength)
	putBool(rec, 100, m.Crawford)
	putBool(rec, 101, m.Jacoby)
	putI32(rec, 552, m.Version)
	binary.LittleEndian.PutUint32(rec[556:], 0x494C4D44)
	if m.Version >= 24 {
		putUTF16(rec, 880, m.Unicode1)
		putUTF16(rec, 880+258, m.Unicode2)
	}
	return s
}

// GameHeader appends a game header.
func (s *Stream) GameHeader(gameNumber, score1, score2 int, crawford bool) *Stream {
	rec := s.next(xgmatch.TagGameHeader)
	putI32(rec, 12, score1)
	putI32(rec, 16, score2)
	putBool(rec, 20, crawford)
	putI32(rec, 48, gameNumber)
	return s
}

// Move appends a move record. moves lists from/to pairs in record
// coordinates; unused pairs are filled with -1.
func (s *Stream) Move(player int, dice [2]int, moves ...int) *Stream {
	rec := s.next(xgmatch.TagMove)
	putI32(rec, 64, player)
	for i := 0; i < 8; i++ {
		v := -1
		if i < len(moves) {
			v = moves[i]
		}
		putI32(rec, 68+4*i, v)
	}
	putI32(rec, 100, dice[0])
	putI32(rec, 104, dice[1])
	return s
}

// Cube appends a cube record. double false writes a position marker.
func (s *Stream) Cube(player int, double bool, take xgmatch.TakeResponse, cubeBefore int) *Stream {
	rec := s.next(xgmatch.TagCube)
	putI32(rec, 12, player)
	if double {
		putI32(rec, 16, 1)
	}
	putI32(rec, 20, int(take))
	putI32(rec, 32, cubeBefore)
	return s
}

// GameFooter appends a game footer.
func (s *Stream) GameFooter(winner, points, termination int) *Stream {
	rec := s.next(xgmatch.TagGameFooter)
	putI32(rec, 24, winner)
	putI32(rec, 28, points)
	putI32(rec, 32, termination)
	return s
}

// MatchFooter appends a match footer.
func (s *Stream) MatchFooter() *Stream {
	s.next(xgmatch.TagMatchFooter)
	return s
}

// Raw appends a record with an arbitrary tag.
func (s *Stream) Raw(tag byte) *Stream {
	s.next(tag)
	return s
}

// Bytes returns the stream.
func (s *Stream) Bytes() []byte {
	return s.buf
}

// SampleMatch is a two game, 3-point match between Alice (player 1) and
// Bob (player 2) with a double and take in game one.
func SampleMatch() *Stream {
	s := &Stream{}
	return s.MatchHeader(Match{Player1: "Alice", Player2: "Bob", MatchLength: 3, Crawford: true, Version: 30}).
		GameHeader(1, 0, 0, false).
		Move(-1, [2]int{3, 1}, 7, 4, 5, 4).
		Move(1, [2]int{6, 4}, 23, 17, 17, 13).
		Cube(-1, true, xgmatch.Takes, 0).
		Move(-1, [2]int{5, 5}, 12, 7, 12, 7, 7, 2, 7, 2).
		GameFooter(-1, 2, 0).
		GameHeader(2, 0, 2, false).
		Move(1, [2]int{2, 1}, 12, 10, 5, 4).
		GameFooter(1, 1, 0).
		MatchFooter()
}
