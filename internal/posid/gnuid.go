package posid

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmmcquay/gammon-mcp/internal/board"
)

const (
	gnuidPositionBytes = 10
	gnuidMatchBytes    = 9
	gnuidSlots         = 25 // 24 points plus the bar, per player
	gnuidMaxCubeLog    = 15
)

// Match ID layout. Offsets are in bits from the start of the 9 byte key.
var (
	matchCubeLog     = bitField{0, 4}
	matchCubeOwner   = bitField{4, 2}
	matchCrawford    = bitField{7, 1}
	matchGameState   = bitField{8, 3}
	matchTurn        = bitField{11, 1}
	matchDie0        = bitField{15, 3}
	matchDie1        = bitField{18, 3}
	matchMatchLength = bitField{21, 15}
	matchScoreO      = bitField{36, 15}
	matchScoreX      = bitField{51, 15}
)

const (
	gnuCubeOwnerO       = 0
	gnuCubeOwnerX       = 1
	gnuCubeCentered     = 3
	gnuGameStatePlaying = 1
	gnuTurnO            = 0
	gnuTurnX            = 1
)

// DecodeGNUID parses a GNU Backgammon "positionId[:matchId]" string. Without a
// match ID the metadata is DefaultMetadata.
func DecodeGNUID(text string) (*board.Board, board.Metadata, error) {
	s := stripPrefix(strings.TrimSpace(text), "GNUID=", "GNUBGID=", "GNUBGID ")
	parts := strings.Split(strings.TrimSpace(s), ":")

	key, err := decodeGNUKey(parts[0])
	if err != nil || len(key) != gnuidPositionBytes {
		return nil, board.Metadata{}, fmt.Errorf("%w: position ID %q must decode to %d bytes",
			ErrMalformedGNUID, parts[0], gnuidPositionBytes)
	}
	b := decodeGNUPosition(key)

	meta := board.DefaultMetadata()
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		mkey, err := decodeGNUKey(parts[1])
		if err != nil || len(mkey) != gnuidMatchBytes {
			return nil, board.Metadata{}, fmt.Errorf("%w: match ID %q must decode to %d bytes",
				ErrMalformedGNUID, parts[1], gnuidMatchBytes)
		}
		meta = decodeGNUMatch(mkey)
	}

	return b, meta, nil
}

// EncodeGNUID renders b and meta as "positionId:matchId" without a prefix.
func EncodeGNUID(b *board.Board, meta board.Metadata) string {
	return base64.RawStdEncoding.EncodeToString(encodeGNUPosition(b)) + ":" +
		base64.RawStdEncoding.EncodeToString(encodeGNUMatch(meta))
}

func decodeGNUKey(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
}

// gnuSlot maps a per-player slot index (0 is the player's one point, 24 the
// bar) to a board slot and sign.
func gnuSlot(player, slot int) (idx, sign int) {
	if player == 0 {
		if slot == gnuidSlots-1 {
			return board.BarX, 1
		}
		return 24 - slot, 1
	}
	if slot == gnuidSlots-1 {
		return board.BarO, -1
	}
	return slot + 1, -1
}

func decodeGNUPosition(key []byte) *board.Board {
	bits := bitBufferFrom(key)
	b := board.NewBoard()
	pos := 0
	for player := 0; player < 2; player++ {
		for slot := 0; slot < gnuidSlots; slot++ {
			count := 0
			for pos < bits.size() && bits.bit(pos) == 1 {
				count++
				pos++
			}
			pos++ // separator
			idx, sign := gnuSlot(player, slot)
			b.Points[idx] += sign * count
		}
	}
	b.DeriveOffCounts()
	return b
}

func encodeGNUPosition(b *board.Board) []byte {
	w := &bitWriter{bitBuffer: newBitBuffer(gnuidPositionBytes)}
	for player := 0; player < 2; player++ {
		for slot := 0; slot < gnuidSlots; slot++ {
			idx, sign := gnuSlot(player, slot)
			count := sign * b.Points[idx]
			for i := 0; i < count; i++ {
				w.write(1)
			}
			w.write(0)
		}
	}
	return w.bytes()
}

func decodeGNUMatch(key []byte) board.Metadata {
	bits := bitBufferFrom(key)
	meta := board.DefaultMetadata()

	if cubeLog := bits.get(matchCubeLog); cubeLog < gnuidMaxCubeLog {
		meta.CubeValue = 1 << cubeLog
	}
	switch bits.get(matchCubeOwner) {
	case gnuCubeOwnerO:
		meta.CubeOwner = board.CubeOwnedByO
	case gnuCubeOwnerX:
		meta.CubeOwner = board.CubeOwnedByX
	default:
		meta.CubeOwner = board.CubeCentered
	}
	meta.Crawford = bits.get(matchCrawford) == 1
	if bits.get(matchTurn) == gnuTurnX {
		meta.OnRoll = board.SideX
	}
	d0, d1 := bits.get(matchDie0), bits.get(matchDie1)
	if d0 >= 1 && d0 <= 6 && d1 >= 1 && d1 <= 6 {
		meta.Dice = board.Dice{d0, d1}
	}
	meta.MatchLength = bits.get(matchMatchLength)
	meta.ScoreO = bits.get(matchScoreO)
	meta.ScoreX = bits.get(matchScoreX)
	return meta
}

func encodeGNUMatch(meta board.Metadata) []byte {
	bits := newBitBuffer(gnuidMatchBytes)

	bits.set(matchCubeLog, meta.CubeLog())
	switch meta.CubeOwner {
	case board.CubeOwnedByO:
		bits.set(matchCubeOwner, gnuCubeOwnerO)
	case board.CubeOwnedByX:
		bits.set(matchCubeOwner, gnuCubeOwnerX)
	default:
		bits.set(matchCubeOwner, gnuCubeCentered)
	}
	if meta.Crawford {
		bits.set(matchCrawford, 1)
	}
	bits.set(matchGameState, gnuGameStatePlaying)
	if meta.OnRoll == board.SideX {
		bits.set(matchTurn, gnuTurnX)
	} else {
		bits.set(matchTurn, gnuTurnO)
	}
	if meta.Dice.Rolled() {
		bits.set(matchDie0, meta.Dice[0])
		bits.set(matchDie1, meta.Dice[1])
	}
	bits.set(matchMatchLength, meta.MatchLength)
	bits.set(matchScoreO, meta.ScoreO)
	bits.set(matchScoreX, meta.ScoreX)
	return bits.bytes()
}
