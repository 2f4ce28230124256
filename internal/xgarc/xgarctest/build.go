// Package xgarctest builds in-memory XG containers for tests.
package xgarctest

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"github.com/dmmcquay/gammon-mcp/internal/xgarc"
)

// Framing selects how a stream is compressed.
type Framing int

const (
	Stored Framing = iota
	Zlib
	RawDeflate
)

// File is one archive entry.
type File struct {
	Name    string
	Data    []byte
	Framing Framing
}

// Options tweaks the container beyond its file list.
type Options struct {
	// Registry selects registry compression; Stored leaves it plain.
	Registry Framing
	// FileCount overrides the trailer's file count when non-nil.
	FileCount *int32
}

// Build returns a container holding files.
func Build(files []File, opts Options) []byte {
	var arc bytes.Buffer
	var registry bytes.Buffer

	for _, f := range files {
		start := arc.Len()
		stream := compress(f.Data, f.Framing)
		arc.Write(stream)

		rec := make([]byte, xgarc.FileRecordSize)
		putShortString(rec[0:256], f.Name)
		putShortString(rec[256:512], "")
		binary.LittleEndian.PutUint32(rec[512:], uint32(len(f.Data)))
		binary.LittleEndian.PutUint32(rec[516:], uint32(len(stream)))
		binary.LittleEndian.PutUint32(rec[520:], uint32(start))
		if f.Framing == Stored {
			rec[528] = 1
		}
		registry.Write(rec)
	}

	reg := registry.Bytes()
	if opts.Registry != Stored {
		reg = compress(reg, opts.Registry)
	}

	count := int32(len(files))
	if opts.FileCount != nil {
		count = *opts.FileCount
	}

	var out bytes.Buffer
	header := make([]byte, xgarc.HeaderSize)
	copy(header, xgarc.Magic[:])
	out.Write(header)
	out.Write(arc.Bytes())
	out.Write(reg)

	trailer := make([]byte, xgarc.TrailerSize)
	binary.LittleEndian.PutUint32(trailer[4:], uint32(count))
	binary.LittleEndian.PutUint32(trailer[8:], 1)
	binary.LittleEndian.PutUint32(trailer[12:], uint32(len(reg)))
	binary.LittleEndian.PutUint32(trailer[16:], uint32(arc.Len()))
	if opts.Registry != Stored {
		binary.LittleEndian.PutUint32(trailer[20:], 1)
	}
	out.Write(trailer)

	return out.Bytes()
}

// Payload wraps game data in a container the way XG does: a single zlib
// compressed temp.xg entry.
func Payload(game []byte) []byte {
	return Build([]File{{Name: xgarc.PayloadName, Data: game, Framing: Zlib}}, Options{})
}

func compress(data []byte, framing Framing) []byte {
	var buf bytes.Buffer
	switch framing {
	case Zlib:
		w := zlib.NewWriter(&buf)
		_, _ = w.Write(data)
		_ = w.Close()
	case RawDeflate:
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		_, _ = w.Write(data)
		_ = w.Close()
	default:
		buf.Write(data)
	}
	return buf.Bytes()
}

func putShortString(field []byte, s string) {
	n := min(len(s), len(field)-1)
	field[0] = byte(n)
	copy(field[1:], s[:n])
}
