package session

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// BatchReport summarizes a ConvertAll run.
type BatchReport struct {
	Attempted   int      // items for which a slot was granted
	Converted   int      // items that produced a result
	Failed      int      // items whose conversion returned an error
	Removed     int      // items removed after their slot was granted
	Unavailable int      // items skipped because their encoder is missing
	Items       []string // ids in the order they were attempted
	// Limited is set when the batch stopped on a rate limit denial, or never
	// started because no slots were left.
	Limited           bool
	RetryAfterMinutes int
}

// ConvertAll converts every eligible item sequentially, in insertion order.
// Eligible items have metadata and are not already converting.
//
// Remaining budget is checked once up front; when it is zero the batch does
// not start. The loop stops at the first denial rather than skipping ahead,
// since the window may run out mid-batch. A failed item does not stop the
// batch, and neither does one whose encoder is unavailable.
func (s *Session) ConvertAll(ctx context.Context) (BatchReport, error) {
	var rep BatchReport

	ids := s.eligible()
	if len(ids) == 0 {
		return rep, nil
	}

	remaining, err := s.limiter.Remaining(ctx)
	if err != nil {
		return rep, err
	}
	if remaining <= 0 {
		rep.Limited = true
		s.log.WithField("pending", len(ids)).Info("no conversions left in window, batch not started")
		return rep, nil
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		d, err := s.Convert(ctx, id)
		if !d.Granted {
			switch {
			case errors.Is(err, ErrEncoderUnavailable):
				rep.Unavailable++
				continue
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotReady), errors.Is(err, ErrInProgress):
				// Removed or changed since the batch started.
				continue
			case err != nil:
				// Limiter store failure.
				return rep, err
			}
			rep.Limited = true
			rep.RetryAfterMinutes = d.RetryAfterMinutes
			s.log.WithFields(logrus.Fields{
				"converted":       rep.Converted,
				"retry_after_min": d.RetryAfterMinutes,
			}).Info("batch stopped by rate limit")
			return rep, nil
		}

		rep.Attempted++
		rep.Items = append(rep.Items, id)
		switch {
		case errors.Is(err, ErrNotFound):
			// Removed mid-conversion; the slot is spent but nothing came out.
			rep.Removed++
		case err != nil:
			rep.Failed++
		default:
			rep.Converted++
		}
	}
	return rep, nil
}

func (s *Session) eligible() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, id := range s.order {
		it := s.items[id]
		if it.Meta != nil && !it.InProgress && it.State.Convertible() {
			ids = append(ids, id)
		}
	}
	return ids
}
