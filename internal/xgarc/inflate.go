package xgarc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// inflate decompresses a zlib stream, falling back to raw deflate when the
// zlib framing is missing or broken.
func inflate(data []byte) ([]byte, error) {
	out, zerr := inflateZlib(data)
	if zerr == nil {
		return out, nil
	}
	out, ferr := inflateRaw(data)
	if ferr == nil {
		return out, nil
	}
	return nil, fmt.Errorf("%w: zlib: %v; raw deflate: %v", ErrDecompressionFailed, zerr, ferr)
}

func inflateZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func inflateRaw(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
