package event

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/streampay/streampay/internal/domain/amount"
)

// Kind identifies a lifecycle transition recorded in the event log.
type Kind string

const (
	KindCreated   Kind = "STREAM_CREATED"
	KindAccepted  Kind = "STREAM_ACCEPTED"
	KindClaimed   Kind = "STREAM_CLAIMED"
	KindCancelled Kind = "STREAM_CANCELLED"
)

// Valid reports whether the kind is one of the four lifecycle transitions.
func (k Kind) Valid() bool {
	switch k {
	case KindCreated, KindAccepted, KindClaimed, KindCancelled:
		return true
	default:
		return false
	}
}

// Event is an immutable record of one lifecycle transition. Events are
// append-only, ordered by occurrence per stream, and form the sole audit
// trail: the live Stream must always be reconstructible by folding them.
type Event struct {
	ID        int64           `json:"id"`
	EventID   uuid.UUID       `json:"eventId"`
	StreamID  int64           `json:"streamId"`
	Kind      Kind            `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	// PrevHash/Hash chain events per stream so tampering with history is
	// detectable. The first event of a stream has an empty PrevHash.
	PrevHash string `json:"prevHash,omitempty"`
	Hash     string `json:"hash"`
}

// CreatedPayload carries the immutable terms recorded at creation.
type CreatedPayload struct {
	Sender          string        `json:"sender"`
	Recipient       string        `json:"recipient"`
	TotalAmount     amount.Amount `json:"totalAmount"`
	DurationSeconds int64         `json:"durationSeconds"`
}

// AcceptedPayload records the vesting start pinned at acceptance.
type AcceptedPayload struct {
	StartTime time.Time `json:"startTime"`
}

// ClaimedPayload records the delta released to the recipient by one claim.
type ClaimedPayload struct {
	Amount amount.Amount `json:"amount"`
}

// CancelledPayload records the settlement split. The two amounts plus the
// claimed total at cancellation equal the stream total exactly.
type CancelledPayload struct {
	ToRecipient amount.Amount `json:"toRecipient"`
	ToSender    amount.Amount `json:"toSender"`
}

// New builds an event for a stream, marshalling the payload and linking the
// hash chain to the previous event's hash.
func New(streamID int64, kind Kind, ts time.Time, payload any, prevHash string) (*Event, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unsupported event kind: %s", kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	e := &Event{
		EventID:   uuid.New(),
		StreamID:  streamID,
		Kind:      kind,
		Timestamp: ts.UTC(),
		Payload:   raw,
		PrevHash:  prevHash,
	}
	e.Hash = e.computeHash()
	return e, nil
}

type hashable struct {
	EventID   string          `json:"eventId"`
	StreamID  int64           `json:"streamId"`
	Kind      Kind            `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	PrevHash  string          `json:"prevHash,omitempty"`
}

func (e *Event) computeHash() string {
	data, _ := json.Marshal(hashable{
		EventID:   e.EventID.String(),
		StreamID:  e.StreamID,
		Kind:      e.Kind,
		Timestamp: e.Timestamp.UTC(),
		Payload:   e.Payload,
		PrevHash:  e.PrevHash,
	})
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyHash recomputes the event hash and reports whether it matches.
func (e *Event) VerifyHash() bool {
	return e.Hash == e.computeHash()
}

// VerifyChain walks a stream's events in order and reports the first broken
// link, either a recomputed-hash mismatch or a prev-hash discontinuity.
func VerifyChain(events []*Event) error {
	prev := ""
	for i, e := range events {
		if !e.VerifyHash() {
			return fmt.Errorf("event %s: hash mismatch", e.EventID)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("event %s: chain break at position %d", e.EventID, i)
		}
		prev = e.Hash
	}
	return nil
}

// DecodePayload unmarshals the payload into the struct matching the kind.
func (e *Event) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.EventID)
	}
	return json.Unmarshal(e.Payload, dst)
}
