package state

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/stream"
	"github.com/streampay/streampay/internal/p2p/protocol"
)

func TestMachineStreamLifecycle(t *testing.T) {
	m := NewMachine()
	alice := mustKey(t)
	bob := mustKey(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mustApply(t, m, signedTx(t, alice, "tx-001", "alice", base,
		protocol.OpAccountFund, protocol.AccountFundPayload{Account: "alice", Amount: 5000}))
	mustApply(t, m, signedTx(t, alice, "tx-002", "alice", base,
		protocol.OpStreamCreate, protocol.StreamCreatePayload{StreamID: 1, Recipient: "bob", Amount: 1000, DurationSeconds: 100}))

	if got := m.Balance("alice"); got != 4000 {
		t.Fatalf("expected escrow debit to leave 4000, got %d", got)
	}

	mustApply(t, m, signedTx(t, bob, "tx-003", "bob", base.Add(10*time.Second),
		protocol.OpStreamAccept, protocol.StreamAcceptPayload{StreamID: 1}))

	// Halfway through vesting bob claims 500.
	mustApply(t, m, signedTx(t, bob, "tx-004", "bob", base.Add(60*time.Second),
		protocol.OpStreamClaim, protocol.StreamClaimPayload{StreamID: 1}))
	if got := m.Balance("bob"); got != 500 {
		t.Fatalf("expected claim of 500, got %d", got)
	}

	// Cancellation at 70% vested settles 200 to bob, 300 back to alice.
	mustApply(t, m, signedTx(t, alice, "tx-005", "alice", base.Add(80*time.Second),
		protocol.OpStreamCancel, protocol.StreamCancelPayload{StreamID: 1}))
	if got := m.Balance("bob"); got != 700 {
		t.Fatalf("expected bob to hold 700 after settlement, got %d", got)
	}
	if got := m.Balance("alice"); got != 4300 {
		t.Fatalf("expected alice refunded to 4300, got %d", got)
	}

	st, ok := m.GetStream(1)
	if !ok {
		t.Fatalf("stream not found")
	}
	if got := stream.Classify(st, base.Add(90*time.Second)); got != stream.StatusCancelled {
		t.Fatalf("expected cancelled stream, got %s", got)
	}

	events := m.ListEvents(1, 100, 0)
	if len(events) != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", len(events))
	}
}

func TestMachineDuplicateTxIsNoOp(t *testing.T) {
	m := NewMachine()
	alice := mustKey(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fund := signedTx(t, alice, "tx-dup", "alice", base,
		protocol.OpAccountFund, protocol.AccountFundPayload{Account: "alice", Amount: 100})
	mustApply(t, m, fund)
	mustApply(t, m, fund)
	if got := m.Balance("alice"); got != 100 {
		t.Fatalf("duplicate tx must not double-fund, got %d", got)
	}
}

func TestMachineRejectsUnfundedCreate(t *testing.T) {
	m := NewMachine()
	alice := mustKey(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tx := signedTx(t, alice, "tx-poor", "alice", base,
		protocol.OpStreamCreate, protocol.StreamCreatePayload{StreamID: 1, Recipient: "bob", Amount: 1000, DurationSeconds: 100})
	if err := m.ApplyTx(tx); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
	if _, ok := m.GetStream(1); ok {
		t.Fatalf("rejected create must not leave a stream behind")
	}
}

func TestMachineClaimAuthorization(t *testing.T) {
	m := NewMachine()
	alice := mustKey(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mustApply(t, m, signedTx(t, alice, "tx-f", "alice", base,
		protocol.OpAccountFund, protocol.AccountFundPayload{Account: "alice", Amount: 1000}))
	mustApply(t, m, signedTx(t, alice, "tx-c", "alice", base,
		protocol.OpStreamCreate, protocol.StreamCreatePayload{StreamID: 1, Recipient: "bob", Amount: 1000, DurationSeconds: 100}))

	claim := signedTx(t, alice, "tx-claim", "alice", base.Add(10*time.Second),
		protocol.OpStreamClaim, protocol.StreamClaimPayload{StreamID: 1})
	if err := m.ApplyTx(claim); err == nil {
		t.Fatalf("sender must not claim")
	}
}

func TestMachineSnapshotRoundTrip(t *testing.T) {
	m := NewMachine()
	alice := mustKey(t)
	bob := mustKey(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mustApply(t, m, signedTx(t, alice, "tx-1", "alice", base,
		protocol.OpAccountFund, protocol.AccountFundPayload{Account: "alice", Amount: 2000}))
	mustApply(t, m, signedTx(t, alice, "tx-2", "alice", base,
		protocol.OpStreamCreate, protocol.StreamCreatePayload{StreamID: 7, Recipient: "bob", Amount: 1000, DurationSeconds: 50}))
	mustApply(t, m, signedTx(t, bob, "tx-3", "bob", base.Add(time.Second),
		protocol.OpStreamAccept, protocol.StreamAcceptPayload{StreamID: 7}))

	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewMachine()
	if err := restored.Unmarshal(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	st, ok := restored.GetStream(7)
	if !ok {
		t.Fatalf("restored machine lost stream")
	}
	if st.TotalAmount != amount.Amount(1000) || st.StartTime == nil {
		t.Fatalf("restored stream mismatch: %+v", st)
	}
	if got := restored.Balance("alice"); got != 1000 {
		t.Fatalf("restored balance mismatch: %d", got)
	}

	// The restored machine still dedups previously applied transactions.
	mustApply(t, restored, signedTx(t, alice, "tx-1", "alice", base,
		protocol.OpAccountFund, protocol.AccountFundPayload{Account: "alice", Amount: 2000}))
	if got := restored.Balance("alice"); got != 1000 {
		t.Fatalf("dedup lost across snapshot, got %d", got)
	}
}

func TestStateStats(t *testing.T) {
	m := NewMachine()
	alice := mustKey(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mustApply(t, m, signedTx(t, alice, "tx-1", "alice", base,
		protocol.OpAccountFund, protocol.AccountFundPayload{Account: "alice", Amount: 2000}))
	mustApply(t, m, signedTx(t, alice, "tx-2", "alice", base,
		protocol.OpStreamCreate, protocol.StreamCreatePayload{StreamID: 1, Recipient: "bob", Amount: 800, DurationSeconds: 100}))

	stats := m.StateStats(base.Add(time.Second))
	if stats.Streams != 1 || stats.ByStatus[string(stream.StatusPending)] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Escrowed != amount.Amount(800) {
		t.Fatalf("expected 800 escrowed, got %d", stats.Escrowed)
	}
}

func mustKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func mustApply(t *testing.T, m *Machine, tx protocol.Tx) {
	t.Helper()
	if err := m.ApplyTx(tx); err != nil {
		t.Fatalf("apply tx %s: %v", tx.TxID, err)
	}
}

func signedTx(t *testing.T, priv ed25519.PrivateKey, txID, actor string, at time.Time, op protocol.Operation, payload any) protocol.Tx {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	tx := protocol.Tx{
		TxID:      txID,
		Nonce:     txID,
		Timestamp: at,
		Actor:     actor,
		Op:        op,
		Payload:   raw,
	}
	if err := tx.Sign(priv); err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return tx
}
