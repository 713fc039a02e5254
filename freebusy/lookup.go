package freebusy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pverga/libitip/calendar"
)

// Source supplies availability intervals for one identity. Implementations
// may be slow or fail; the collector degrades such lookups to UNKNOWN.
type Source interface {
	Lookup(ctx context.Context, email string, start, end time.Time) ([]calendar.FreeBusyInterval, error)
}

// CollectOptions tunes multi-attendee collection.
type CollectOptions struct {
	// Timeout bounds each individual lookup. Zero means no per-lookup bound
	// beyond the caller's context.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Collect fetches availability for every attendee concurrently. A failed or
// timed-out lookup contributes a single UNKNOWN interval spanning the whole
// window instead of aborting the aggregation.
func Collect(ctx context.Context, source Source, attendees []calendar.Attendee, start, end time.Time, opts CollectOptions) []Availability {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Availability, len(attendees))
	var wg sync.WaitGroup
	for i, attendee := range attendees {
		wg.Add(1)
		go func(i int, attendee calendar.Attendee) {
			defer wg.Done()
			lctx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			intervals, err := source.Lookup(lctx, attendee.Email, start, end)
			if err != nil {
				logger.Warn("free/busy lookup degraded to unknown",
					"email", attendee.Email, "err", err)
				intervals = []calendar.FreeBusyInterval{{
					Start:  start,
					End:    end,
					Status: calendar.FreeBusyUnknown,
				}}
			}
			out[i] = Availability{Attendee: attendee, Intervals: intervals}
		}(i, attendee)
	}
	wg.Wait()
	return out
}
