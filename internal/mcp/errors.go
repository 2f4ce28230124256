package mcp

import (
	"errors"
	"os"

	"github.com/dmmcquay/gammon-mcp/internal/posid"
	"github.com/dmmcquay/gammon-mcp/internal/store"
	"github.com/dmmcquay/gammon-mcp/internal/xgarc"
	"github.com/dmmcquay/gammon-mcp/internal/xgmatch"
)

// errInvalidInput covers argument problems found by the handlers themselves.
var errInvalidInput = errors.New("invalid input")

var errorKinds = []struct {
	err  error
	kind string
}{
	{posid.ErrUnrecognizedFormat, "unrecognized_format"},
	{posid.ErrMalformedXGID, "malformed_xgid"},
	{posid.ErrMalformedGNUID, "malformed_gnuid"},
	{posid.ErrMalformedOGID, "malformed_ogid"},
	{xgarc.ErrNotAnArchive, "not_an_archive"},
	{xgarc.ErrEmptyArchive, "empty_archive"},
	{xgarc.ErrPayloadNotFound, "payload_not_found"},
	{xgarc.ErrDecompressionFailed, "decompression_failed"},
	{xgarc.ErrCorruptArchive, "corrupt_archive"},
	{xgarc.ErrInvalidGameFile, "invalid_game_file"},
	{xgmatch.ErrNoMatchHeader, "no_match_header"},
	{store.ErrNotFound, "not_found"},
	{store.ErrInvalidID, "invalid_id"},
	{os.ErrNotExist, "file_not_found"},
	{errInvalidInput, "invalid_input"},
}

// errorKind names the sentinel behind err for metrics labels. Errors that
// match no sentinel are internal.
func errorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// isUserError reports whether err stems from the caller's input, in which
// case it is returned as a tool error result instead of a protocol error.
func isUserError(err error) bool {
	return errorKind(err) != "internal"
}
