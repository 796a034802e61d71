package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/stream"
	"github.com/streampay/streampay/internal/p2p/protocol"
)

// Event is one committed ledger entry. Entries are derived purely from the
// transaction, so every replica records identical histories.
type Event struct {
	EventID    string          `json:"eventId"`
	StreamID   int64           `json:"streamId"`
	Type       string          `json:"type"`
	Actor      string          `json:"actor"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	TxID       string          `json:"txId"`
	CommitTime time.Time       `json:"commitTime"`
}

type snapshot struct {
	Balances       map[string]amount.Amount  `json:"balances"`
	Streams        map[string]*stream.Stream `json:"streams"`
	StreamOrder    []int64                   `json:"streamOrder"`
	EventsByStream map[string][]Event        `json:"eventsByStream"`
	AppliedTx      map[string]bool           `json:"appliedTx"`
}

// Machine is the deterministic stream ledger state machine. Every replica
// applies the same transactions in raft log order; transaction timestamps,
// not wall clocks, drive vesting math so replicas stay bit-identical.
type Machine struct {
	mu sync.RWMutex
	s  snapshot
}

func NewMachine() *Machine {
	m := &Machine{}
	m.s = emptySnapshot()
	return m
}

func emptySnapshot() snapshot {
	return snapshot{
		Balances:       map[string]amount.Amount{},
		Streams:        map[string]*stream.Stream{},
		StreamOrder:    []int64{},
		EventsByStream: map[string][]Event{},
		AppliedTx:      map[string]bool{},
	}
}

// Marshal serializes current machine snapshot.
func (m *Machine) Marshal() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(m.copySnapshotLocked())
}

// Unmarshal restores machine state from snapshot payload.
func (m *Machine) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty snapshot")
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	normalizeSnapshot(&s)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

func normalizeSnapshot(s *snapshot) {
	if s.Balances == nil {
		s.Balances = map[string]amount.Amount{}
	}
	if s.Streams == nil {
		s.Streams = map[string]*stream.Stream{}
	}
	if s.StreamOrder == nil {
		s.StreamOrder = []int64{}
	}
	if s.EventsByStream == nil {
		s.EventsByStream = map[string][]Event{}
	}
	if s.AppliedTx == nil {
		s.AppliedTx = map[string]bool{}
	}
}

func (m *Machine) copySnapshotLocked() snapshot {
	out := emptySnapshot()
	for k, v := range m.s.Balances {
		out.Balances[k] = v
	}
	for k, v := range m.s.Streams {
		out.Streams[k] = v.Clone()
	}
	out.StreamOrder = append([]int64(nil), m.s.StreamOrder...)
	for k, v := range m.s.EventsByStream {
		out.EventsByStream[k] = append([]Event(nil), v...)
	}
	for k, v := range m.s.AppliedTx {
		out.AppliedTx[k] = v
	}
	return out
}

func streamKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ApplyTx validates and applies one signed transaction. A transaction id
// seen before is a no-op success, so client retries are safe.
func (m *Machine) ApplyTx(tx protocol.Tx) error {
	if err := tx.Verify(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s.AppliedTx[tx.TxID] {
		return nil
	}
	at := tx.Timestamp.UTC()

	var err error
	switch tx.Op {
	case protocol.OpAccountFund:
		err = m.applyAccountFundLocked(tx, at)
	case protocol.OpStreamCreate:
		err = m.applyStreamCreateLocked(tx, at)
	case protocol.OpStreamAccept:
		err = m.applyStreamAcceptLocked(tx, at)
	case protocol.OpStreamClaim:
		err = m.applyStreamClaimLocked(tx, at)
	case protocol.OpStreamCancel:
		err = m.applyStreamCancelLocked(tx, at)
	default:
		err = fmt.Errorf("unsupported op: %s", tx.Op)
	}
	if err != nil {
		return err
	}
	m.s.AppliedTx[tx.TxID] = true
	return nil
}

func (m *Machine) applyAccountFundLocked(tx protocol.Tx, _ time.Time) error {
	payload, err := protocol.DecodePayload[protocol.AccountFundPayload](tx.Payload)
	if err != nil {
		return err
	}
	account := strings.TrimSpace(payload.Account)
	if account == "" {
		return errors.New("account is required")
	}
	if account != tx.Actor {
		return fmt.Errorf("actor %s may only fund itself", tx.Actor)
	}
	if payload.Amount == 0 {
		return errors.New("amount must be positive")
	}
	next, err := m.s.Balances[account].Add(payload.Amount)
	if err != nil {
		return err
	}
	m.s.Balances[account] = next
	return nil
}

func (m *Machine) applyStreamCreateLocked(tx protocol.Tx, at time.Time) error {
	payload, err := protocol.DecodePayload[protocol.StreamCreatePayload](tx.Payload)
	if err != nil {
		return err
	}
	if payload.StreamID <= 0 {
		return errors.New("stream_id must be positive")
	}
	key := streamKey(payload.StreamID)
	if _, ok := m.s.Streams[key]; ok {
		return fmt.Errorf("stream already exists: %d", payload.StreamID)
	}
	st, err := stream.New(payload.StreamID, tx.Actor, strings.TrimSpace(payload.Recipient), payload.Amount, payload.DurationSeconds, at)
	if err != nil {
		return err
	}
	balance := m.s.Balances[tx.Actor]
	remaining, err := balance.Sub(payload.Amount)
	if err != nil {
		return fmt.Errorf("account %s holds %s, stream needs %s", tx.Actor, balance, payload.Amount)
	}
	m.s.Balances[tx.Actor] = remaining
	m.s.Streams[key] = st
	m.s.StreamOrder = append(m.s.StreamOrder, payload.StreamID)
	m.appendEventLocked(payload.StreamID, string(protocol.OpStreamCreate), tx, at)
	return nil
}

func (m *Machine) applyStreamAcceptLocked(tx protocol.Tx, at time.Time) error {
	payload, err := protocol.DecodePayload[protocol.StreamAcceptPayload](tx.Payload)
	if err != nil {
		return err
	}
	st, ok := m.s.Streams[streamKey(payload.StreamID)]
	if !ok {
		return fmt.Errorf("stream not found: %d", payload.StreamID)
	}
	if tx.Actor != st.Recipient {
		return fmt.Errorf("actor %s is not the recipient", tx.Actor)
	}
	if err := st.Accept(at); err != nil {
		return err
	}
	m.appendEventLocked(payload.StreamID, string(protocol.OpStreamAccept), tx, at)
	return nil
}

func (m *Machine) applyStreamClaimLocked(tx protocol.Tx, at time.Time) error {
	payload, err := protocol.DecodePayload[protocol.StreamClaimPayload](tx.Payload)
	if err != nil {
		return err
	}
	st, ok := m.s.Streams[streamKey(payload.StreamID)]
	if !ok {
		return fmt.Errorf("stream not found: %d", payload.StreamID)
	}
	if tx.Actor != st.Recipient {
		return fmt.Errorf("actor %s is not the recipient", tx.Actor)
	}
	switch stream.Classify(st, at) {
	case stream.StatusActive, stream.StatusCompleted:
	default:
		return fmt.Errorf("stream %d is not claimable", payload.StreamID)
	}
	claimable, err := stream.ClaimableAt(st, at)
	if err != nil {
		return err
	}
	if claimable == 0 {
		// Nothing vested beyond what was claimed; succeed without an entry.
		return nil
	}
	if err := st.RecordClaim(claimable, at); err != nil {
		return err
	}
	next, err := m.s.Balances[st.Recipient].Add(claimable)
	if err != nil {
		return err
	}
	m.s.Balances[st.Recipient] = next
	m.appendEventLocked(payload.StreamID, string(protocol.OpStreamClaim), tx, at)
	return nil
}

func (m *Machine) applyStreamCancelLocked(tx protocol.Tx, at time.Time) error {
	payload, err := protocol.DecodePayload[protocol.StreamCancelPayload](tx.Payload)
	if err != nil {
		return err
	}
	st, ok := m.s.Streams[streamKey(payload.StreamID)]
	if !ok {
		return fmt.Errorf("stream not found: %d", payload.StreamID)
	}
	if tx.Actor != st.Sender && tx.Actor != st.Recipient {
		return fmt.Errorf("actor %s is not a party to stream %d", tx.Actor, payload.StreamID)
	}
	switch stream.Classify(st, at) {
	case stream.StatusPending, stream.StatusActive:
	default:
		return fmt.Errorf("stream %d is not cancellable", payload.StreamID)
	}
	settlement, err := stream.SettleAt(st, at)
	if err != nil {
		return err
	}
	if err := st.Cancel(at); err != nil {
		return err
	}
	if settlement.ToRecipient > 0 {
		next, err := m.s.Balances[st.Recipient].Add(settlement.ToRecipient)
		if err != nil {
			return err
		}
		m.s.Balances[st.Recipient] = next
	}
	if settlement.ToSender > 0 {
		next, err := m.s.Balances[st.Sender].Add(settlement.ToSender)
		if err != nil {
			return err
		}
		m.s.Balances[st.Sender] = next
	}
	m.appendEventLocked(payload.StreamID, string(protocol.OpStreamCancel), tx, at)
	return nil
}

// appendEventLocked records one committed entry. The event id derives from
// the tx id, keeping replicas identical.
func (m *Machine) appendEventLocked(streamID int64, eventType string, tx protocol.Tx, at time.Time) {
	key := streamKey(streamID)
	m.s.EventsByStream[key] = append(m.s.EventsByStream[key], Event{
		EventID:    tx.TxID + ":" + eventType,
		StreamID:   streamID,
		Type:       eventType,
		Actor:      tx.Actor,
		Payload:    tx.Payload,
		CreatedAt:  at,
		TxID:       tx.TxID,
		CommitTime: at,
	})
}

// GetStream returns a copy of one stream.
func (m *Machine) GetStream(streamID int64) (*stream.Stream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.s.Streams[streamKey(streamID)]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Balance returns an account's spendable balance.
func (m *Machine) Balance(account string) amount.Amount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.Balances[account]
}

// ListStreams returns streams an account participates in, creation order.
func (m *Machine) ListStreams(account string, limit, offset int) []*stream.Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*stream.Stream
	skipped := 0
	for _, id := range m.s.StreamOrder {
		st, ok := m.s.Streams[streamKey(id)]
		if !ok {
			continue
		}
		if account != "" && st.Sender != account && st.Recipient != account {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, st.Clone())
		if len(out) >= limit {
			break
		}
	}
	return out
}

// ListEvents returns a stream's committed entries in commit order.
func (m *Machine) ListEvents(streamID int64, limit, offset int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.s.EventsByStream[streamKey(streamID)]
	if offset >= len(events) {
		return []Event{}
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	return append([]Event(nil), events[offset:end]...)
}

// Stats summarizes machine state.
type Stats struct {
	Streams    int            `json:"streams"`
	ByStatus   map[string]int `json:"byStatus"`
	Accounts   int            `json:"accounts"`
	Events     int            `json:"events"`
	AppliedTxs int            `json:"appliedTxs"`
	Escrowed   amount.Amount  `json:"escrowed"`
}

// StateStats computes summary counters at the given reference time.
func (m *Machine) StateStats(at time.Time) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{
		Streams:    len(m.s.Streams),
		ByStatus:   map[string]int{},
		Accounts:   len(m.s.Balances),
		AppliedTxs: len(m.s.AppliedTx),
	}
	for _, st := range m.s.Streams {
		stats.ByStatus[string(stream.Classify(st, at))]++
		if stream.Classify(st, at) != stream.StatusCancelled {
			if remaining, err := st.TotalAmount.Sub(st.ClaimedAmount); err == nil {
				if total, err := stats.Escrowed.Add(remaining); err == nil {
					stats.Escrowed = total
				}
			}
		}
	}
	for _, events := range m.s.EventsByStream {
		stats.Events += len(events)
	}
	return stats
}
