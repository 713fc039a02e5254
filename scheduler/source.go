package scheduler

import (
	"context"
	"time"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/recurrence"
	"github.com/pverga/libitip/storage"
)

// StoreSource derives free/busy intervals from the events an attendee has
// in an EventStore, expanding recurring series through the recurrence
// engine. Cancelled events and occurrences the attendee declined contribute
// nothing, i.e. read as free.
type StoreSource struct {
	store  storage.EventStore
	engine *recurrence.Engine
}

// NewStoreSource creates a store-backed free/busy source.
func NewStoreSource(store storage.EventStore, engine *recurrence.Engine) (*StoreSource, error) {
	if store == nil {
		return nil, calendar.NewError(calendar.KindValidation, "event store is required")
	}
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	return &StoreSource{store: store, engine: engine}, nil
}

// Lookup implements freebusy.Source.
func (s *StoreSource) Lookup(ctx context.Context, email string, start, end time.Time) ([]calendar.FreeBusyInterval, error) {
	events, err := s.store.Query(ctx, storage.Query{
		Start:    start,
		End:      end,
		Attendee: email,
	})
	if err != nil {
		return nil, err
	}

	var out []calendar.FreeBusyInterval
	for _, ev := range events {
		status := ev.FreeBusy
		switch status {
		case calendar.FreeBusyFree:
			continue
		case "", calendar.FreeBusyUnknown:
			status = calendar.FreeBusyBusy
		}
		if i := ev.FindAttendee(email); i >= 0 {
			if ev.Attendees[i].Status == calendar.PartStatDeclined {
				continue
			}
		}
		instances, err := s.engine.Resolve(ev, start, end, nil)
		if err != nil {
			return nil, err
		}
		for _, inst := range instances {
			if inst.Status == calendar.StatusCancelled || inst.FreeBusy == calendar.FreeBusyFree {
				continue
			}
			instStatus := status
			if inst.FreeBusy != "" && inst.FreeBusy != calendar.FreeBusyUnknown {
				instStatus = inst.FreeBusy
			}
			out = append(out, calendar.FreeBusyInterval{
				Start:  inst.Start,
				End:    inst.End,
				Status: instStatus,
			})
		}
	}
	return out, nil
}
