package event

import (
	"fmt"

	"github.com/streampay/streampay/internal/domain/stream"
)

// Fold replays a stream's events in order into the stream value they imply.
// The result must equal the live repository entry at all times; reconcile
// uses this as the consistency check and the recovery path after partial
// failures.
func Fold(events []*Event) (*stream.Stream, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to fold")
	}
	first := events[0]
	if first.Kind != KindCreated {
		return nil, fmt.Errorf("stream %d: first event is %s, want %s", first.StreamID, first.Kind, KindCreated)
	}
	var created CreatedPayload
	if err := first.DecodePayload(&created); err != nil {
		return nil, err
	}
	s, err := stream.New(first.StreamID, created.Sender, created.Recipient, created.TotalAmount, created.DurationSeconds, first.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("stream %d: fold created event: %w", first.StreamID, err)
	}

	for _, e := range events[1:] {
		if e.StreamID != first.StreamID {
			return nil, fmt.Errorf("stream %d: foreign event %s in fold", first.StreamID, e.EventID)
		}
		switch e.Kind {
		case KindAccepted:
			var p AcceptedPayload
			if err := e.DecodePayload(&p); err != nil {
				return nil, err
			}
			if err := s.Accept(p.StartTime); err != nil {
				return nil, fmt.Errorf("stream %d: fold accepted event: %w", s.ID, err)
			}
		case KindClaimed:
			var p ClaimedPayload
			if err := e.DecodePayload(&p); err != nil {
				return nil, err
			}
			if err := s.RecordClaim(p.Amount, e.Timestamp); err != nil {
				return nil, fmt.Errorf("stream %d: fold claimed event: %w", s.ID, err)
			}
		case KindCancelled:
			if err := s.Cancel(e.Timestamp); err != nil {
				return nil, fmt.Errorf("stream %d: fold cancelled event: %w", s.ID, err)
			}
		case KindCreated:
			return nil, fmt.Errorf("stream %d: duplicate created event %s", s.ID, e.EventID)
		default:
			return nil, fmt.Errorf("stream %d: unknown event kind %s", s.ID, e.Kind)
		}
	}
	return s, nil
}
