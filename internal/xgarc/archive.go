// Package xgarc reads the compressed container that wraps eXtreme Gammon
// .xg match files and extracts the game-data payload.
//
// A container is laid out as
//
//	header (8232 bytes, starts with "RGMH")
//	archive data (one stream per file)
//	registry (one 532 byte record per file, optionally compressed)
//	trailer (36 bytes)
//
// Offsets are derived backward from the trailer.
package xgarc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	HeaderSize     = 8232
	TrailerSize    = 36
	FileRecordSize = 532

	// PayloadName is the registry entry holding the game records.
	PayloadName = "temp.xg"

	gameMagicOffset = 556
	gameMagicMinLen = 560
	gameMagic       = 0x494C4D44 // "DMLI"
)

// Magic is the container signature as stored at offset 0. It reads "HMGR"
// when the first four bytes are taken in reverse.
var Magic = [4]byte{'R', 'G', 'M', 'H'}

var (
	ErrNotAnArchive        = errors.New("not an XG archive")
	ErrEmptyArchive        = errors.New("archive contains no files")
	ErrPayloadNotFound     = errors.New("game data not found in archive")
	ErrDecompressionFailed = errors.New("failed to decompress data")
	ErrCorruptArchive      = errors.New("corrupt archive")
	ErrInvalidGameFile     = errors.New("invalid game file")
)

// Trailer is the fixed record at the end of the container.
type Trailer struct {
	CRC                uint32 `json:"crc"`
	FileCount          int    `json:"fileCount"`
	Version            int    `json:"version"`
	RegistrySize       int    `json:"registrySize"`
	ArchiveSize        int    `json:"archiveSize"`
	CompressedRegistry bool   `json:"compressedRegistry"`
}

// FileRecord is one registry entry. Start is relative to the beginning of the
// archive data block.
type FileRecord struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	OriginalSize   int    `json:"originalSize"`
	CompressedSize int    `json:"compressedSize"`
	Start          int    `json:"start"`
	CRC            uint32 `json:"crc"`
	Compressed     bool   `json:"compressed"`
}

// Archive is an opened container. It keeps a reference to the caller's bytes
// and never copies uncompressed payloads.
type Archive struct {
	Trailer Trailer
	Files   []FileRecord

	data      []byte
	dataStart int
	dataEnd   int
}

// ReadTrailer validates the container signature and decodes the trailer.
func ReadTrailer(data []byte) (Trailer, error) {
	if len(data) < HeaderSize+TrailerSize {
		return Trailer{}, fmt.Errorf("%w: file is %d bytes, need at least %d",
			ErrNotAnArchive, len(data), HeaderSize+TrailerSize)
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return Trailer{}, fmt.Errorf("%w: expected HMGR magic, got %q",
			ErrNotAnArchive, []byte{data[3], data[2], data[1], data[0]})
	}

	t := data[len(data)-TrailerSize:]
	return Trailer{
		CRC:                binary.LittleEndian.Uint32(t[0:]),
		FileCount:          int(int32(binary.LittleEndian.Uint32(t[4:]))),
		Version:            int(int32(binary.LittleEndian.Uint32(t[8:]))),
		RegistrySize:       int(int32(binary.LittleEndian.Uint32(t[12:]))),
		ArchiveSize:        int(int32(binary.LittleEndian.Uint32(t[16:]))),
		CompressedRegistry: int32(binary.LittleEndian.Uint32(t[20:])) != 0,
	}, nil
}

// Open parses the trailer and registry of data.
func Open(data []byte) (*Archive, error) {
	trailer, err := ReadTrailer(data)
	if err != nil {
		return nil, err
	}
	if trailer.FileCount <= 0 {
		return nil, ErrEmptyArchive
	}

	end := len(data) - TrailerSize
	registryStart := end - trailer.RegistrySize
	dataStart := registryStart - trailer.ArchiveSize
	if trailer.RegistrySize < 0 || trailer.ArchiveSize < 0 || registryStart < 0 || dataStart < 0 {
		return nil, fmt.Errorf("%w: registry size %d and archive size %d exceed file size %d",
			ErrCorruptArchive, trailer.RegistrySize, trailer.ArchiveSize, len(data))
	}

	registry := data[registryStart:end]
	if trailer.CompressedRegistry {
		registry, err = inflate(registry)
		if err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
	}

	files, err := ReadRegistry(registry, trailer.FileCount)
	if err != nil {
		return nil, err
	}

	return &Archive{
		Trailer:   trailer,
		Files:     files,
		data:      data,
		dataStart: dataStart,
		dataEnd:   end,
	}, nil
}

// ReadRegistry decodes count file records from an uncompressed registry.
func ReadRegistry(registry []byte, count int) ([]FileRecord, error) {
	if count*FileRecordSize > len(registry) {
		return nil, fmt.Errorf("%w: registry holds %d bytes, need %d for %d files",
			ErrCorruptArchive, len(registry), count*FileRecordSize, count)
	}

	files := make([]FileRecord, 0, count)
	for i := 0; i < count; i++ {
		r := registry[i*FileRecordSize : (i+1)*FileRecordSize]
		files = append(files, FileRecord{
			Name:           ShortString(r[0:256]),
			Path:           ShortString(r[256:512]),
			OriginalSize:   int(int32(binary.LittleEndian.Uint32(r[512:]))),
			CompressedSize: int(int32(binary.LittleEndian.Uint32(r[516:]))),
			Start:          int(int32(binary.LittleEndian.Uint32(r[520:]))),
			CRC:            binary.LittleEndian.Uint32(r[524:]),
			Compressed:     r[528] == 0,
		})
	}
	return files, nil
}

// Find returns the first record whose name matches case-insensitively.
func (a *Archive) Find(name string) (FileRecord, bool) {
	for _, f := range a.Files {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FileRecord{}, false
}

// Extract returns the contents of rec. Uncompressed entries are returned as a
// subslice of the archive bytes.
func (a *Archive) Extract(rec FileRecord) ([]byte, error) {
	start := a.dataStart + rec.Start
	if rec.Start < 0 || start > a.dataEnd || rec.OriginalSize < 0 {
		return nil, fmt.Errorf("%w: %s starts at %d, outside archive data", ErrCorruptArchive, rec.Name, rec.Start)
	}

	if !rec.Compressed {
		if start+rec.OriginalSize > len(a.data) {
			return nil, fmt.Errorf("%w: %s declares %d bytes, only %d available",
				ErrCorruptArchive, rec.Name, rec.OriginalSize, len(a.data)-start)
		}
		return a.data[start : start+rec.OriginalSize], nil
	}

	// The compressed size in the registry is not always exact, so hand the
	// inflater a larger window and let the stream end decide.
	n := max(rec.CompressedSize, 2*rec.OriginalSize)
	n = min(n, a.dataEnd-start)
	out, err := inflate(a.data[start : start+n])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, err)
	}
	return out, nil
}

// ReadArchive extracts and validates the game-data payload from data.
func ReadArchive(data []byte) ([]byte, error) {
	a, err := Open(data)
	if err != nil {
		return nil, err
	}

	rec, ok := a.Find(PayloadName)
	if !ok {
		return nil, fmt.Errorf("%w: no %s entry among %d files", ErrPayloadNotFound, PayloadName, len(a.Files))
	}

	payload, err := a.Extract(rec)
	if err != nil {
		return nil, err
	}

	if len(payload) > gameMagicMinLen {
		if m := binary.LittleEndian.Uint32(payload[gameMagicOffset:]); m != gameMagic {
			return nil, fmt.Errorf("%w: DMLI magic not found (got %#08x)", ErrInvalidGameFile, m)
		}
	}
	return payload, nil
}

// ShortString decodes a Delphi short string: a length byte followed by that
// many Latin-1 characters. The length is clamped to the field.
func ShortString(field []byte) string {
	if len(field) == 0 {
		return ""
	}
	n := min(int(field[0]), len(field)-1)
	var sb strings.Builder
	sb.Grow(n)
	for _, c := range field[1 : 1+n] {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}
