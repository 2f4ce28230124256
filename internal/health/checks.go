package health

import (
	"context"
	"fmt"

	"github.com/dmmcquay/gammon-mcp/internal/board"
	"github.com/dmmcquay/gammon-mcp/internal/posid"
)

// Pinger is anything with a liveness probe, such as the match store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// CodecCheck encodes the starting position in every format and decodes it
// back, failing if any codec disagrees with the original board.
func CodecCheck() Check {
	return func(ctx context.Context) error {
		start := board.StartingPosition()
		meta := board.DefaultMetadata()

		for format, id := range posid.EncodeAll(start, meta) {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := posid.Decode(id)
			if err != nil {
				return fmt.Errorf("%s codec: %w", format, err)
			}
			if res.Format != format {
				return fmt.Errorf("%s codec: detected as %s", format, res.Format)
			}
			if res.Board.Points != start.Points {
				return fmt.Errorf("%s codec: round trip changed the position", format)
			}
		}
		return nil
	}
}
