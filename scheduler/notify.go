package scheduler

import (
	"context"
	"sync"

	"github.com/pverga/libitip/calendar"
)

// DeliveryResult summarizes notification fan-out. Deliveries are
// independent per recipient: one failure neither blocks the others nor
// rolls back the committed mutation.
type DeliveryResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    []error
}

// deliver sends every message to every recipient concurrently and
// aggregates the outcome.
func (s *Scheduler) deliver(ctx context.Context, msgs []calendar.SchedulingMessage) *DeliveryResult {
	result := &DeliveryResult{}
	if s.sender == nil || len(msgs) == 0 {
		return result
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range msgs {
		msg := &msgs[i]
		for _, recipient := range msg.Recipients {
			wg.Add(1)
			go func(recipient calendar.Attendee) {
				defer wg.Done()
				err := s.sender.Send(ctx, msg, recipient)

				mu.Lock()
				defer mu.Unlock()
				result.Attempted++
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors,
						calendar.WrapError(calendar.KindDelivery, err,
							"%s to %s", msg.Method, recipient.Email))
					s.logger.Warn("scheduling message delivery failed",
						"method", msg.Method, "recipient", recipient.Email, "err", err)
					return
				}
				result.Succeeded++
			}(recipient)
		}
	}
	wg.Wait()
	return result
}
