// Package posid converts backgammon position IDs (XGID, GNUID, OGID) to and
// from the board model.
package posid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmmcquay/gammon-mcp/internal/board"
)

// Format names a position ID encoding.
type Format string

const (
	FormatXGID  Format = "xgid"
	FormatGNUID Format = "gnuid"
	FormatOGID  Format = "ogid"
)

// Formats lists every supported encoding in display order.
var Formats = []Format{FormatXGID, FormatGNUID, FormatOGID}

var (
	ErrUnrecognizedFormat = errors.New("unrecognized position ID format")
	ErrMalformedXGID      = errors.New("malformed XGID")
	ErrMalformedGNUID     = errors.New("malformed GNUID")
	ErrMalformedOGID      = errors.New("malformed OGID")
)

var (
	xgidPositionPattern  = regexp.MustCompile(`^[a-pA-P\-]{26}$`)
	gnuidPositionPattern = regexp.MustCompile(`^[A-Za-z0-9+/]{14}$`)
	gnuidMatchPattern    = regexp.MustCompile(`^[A-Za-z0-9+/]{12}$`)
	ogidCubePattern      = regexp.MustCompile(`^[WBN][0-8][NOTP]$`)
)

// Result is a decoded position ID.
type Result struct {
	Board    *board.Board   `json:"board"`
	Metadata board.Metadata `json:"metadata"`
	Format   Format         `json:"format"`
}

type codec struct {
	decode func(string) (*board.Board, board.Metadata, error)
	encode func(*board.Board, board.Metadata) string
}

var codecs = map[Format]codec{
	FormatXGID:  {decode: DecodeXGID, encode: EncodeXGID},
	FormatGNUID: {decode: DecodeGNUID, encode: EncodeGNUID},
	FormatOGID:  {decode: DecodeOGID, encode: EncodeOGID},
}

// Detect identifies the encoding of text. An explicit prefix (XGID=, GNUID=,
// GNUBGID=, OGID=) wins; otherwise the shape of the fields decides.
func Detect(text string) (Format, error) {
	s := strings.TrimSpace(text)
	upper := strings.ToUpper(s)

	switch {
	case strings.HasPrefix(upper, "XGID="):
		return FormatXGID, nil
	case strings.HasPrefix(upper, "GNUID="),
		strings.HasPrefix(upper, "GNUBGID="),
		strings.HasPrefix(upper, "GNUBGID "):
		return FormatGNUID, nil
	case strings.HasPrefix(upper, "OGID="):
		return FormatOGID, nil
	}

	parts := strings.Split(s, ":")

	if xgidPositionPattern.MatchString(parts[0]) {
		return FormatXGID, nil
	}

	if gnuidPositionPattern.MatchString(parts[0]) {
		if len(parts) == 1 || (len(parts) == 2 && gnuidMatchPattern.MatchString(parts[1])) {
			return FormatGNUID, nil
		}
	}

	if len(parts) >= 3 && ogidCubePattern.MatchString(parts[2]) {
		return FormatOGID, nil
	}

	return "", fmt.Errorf("%w: supported formats are XGID, GNUID and OGID", ErrUnrecognizedFormat)
}

// Decode detects the format of text and decodes it.
func Decode(text string) (*Result, error) {
	format, err := Detect(text)
	if err != nil {
		return nil, err
	}
	b, meta, err := codecs[format].decode(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	return &Result{Board: b, Metadata: meta, Format: format}, nil
}

// Encode renders b and meta in the given format.
func Encode(format Format, b *board.Board, meta board.Metadata) (string, error) {
	c, ok := codecs[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedFormat, format)
	}
	return c.encode(b, meta), nil
}

// EncodeAll renders b and meta in every supported format.
func EncodeAll(b *board.Board, meta board.Metadata) map[Format]string {
	out := make(map[Format]string, len(codecs))
	for _, f := range Formats {
		out[f] = codecs[f].encode(b, meta)
	}
	return out
}

// ParseFormat maps a user supplied name onto a Format.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := codecs[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedFormat, name)
	}
	return f, nil
}

// stripPrefix removes a case-insensitive prefix if present.
func stripPrefix(s string, prefixes ...string) string {
	upper := strings.ToUpper(s)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			return s[len(p):]
		}
	}
	return s
}

// parseDicePair reads a two digit roll such as "53". Anything else means no
// dice.
func parseDicePair(s string) board.Dice {
	if len(s) != 2 {
		return board.Dice{}
	}
	d1, d2 := int(s[0]-'0'), int(s[1]-'0')
	if d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return board.Dice{}
	}
	return board.Dice{d1, d2}
}
