package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/GoSnap/internal/debug"
)

// SequenceParams defines a series of single captures.
type SequenceParams struct {
	Count    int           // number of photos
	Interval time.Duration // delay between two shots
}

// RunSequence takes p.Count photos one after another on a Ready
// controller, waiting for each to be persisted before the next shot.
// It stops at the first failure or when ctx is cancelled, returning the
// captures completed so far.
func RunSequence(ctx context.Context, c *Controller, p SequenceParams) ([]*Result, error) {
	if p.Count <= 0 {
		return nil, fmt.Errorf("sequence count must be > 0, got %d", p.Count)
	}

	results := make([]*Result, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		if i > 0 && p.Interval > 0 {
			select {
			case <-time.After(p.Interval):
			case <-ctx.Done():
				return results, ctx.Err()
			}
		}

		pending, err := c.Capture(ctx)
		if err != nil {
			return results, err
		}
		res, err := pending.Wait(ctx)
		if err != nil {
			return results, fmt.Errorf("shot %d/%d: %w", i+1, p.Count, err)
		}
		debug.Live("Shot %d/%d saved as %s", i+1, p.Count, res.File.Name)
		results = append(results, res)
	}
	return results, nil
}
