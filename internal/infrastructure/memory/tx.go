package memory

import (
	"context"

	"github.com/streampay/streampay/internal/domain/event"
	"github.com/streampay/streampay/internal/domain/stream"
)

// TxRunner sequences a mutation against the in-memory repositories. The map
// stores give no rollback; callers relying on compensation semantics should
// test against the postgres runner.
type TxRunner struct {
	Streams stream.Repository
	Events  event.Repository
}

func NewTxRunner(streams stream.Repository, events event.Repository) *TxRunner {
	return &TxRunner{Streams: streams, Events: events}
}

func (t *TxRunner) RunInTx(_ context.Context, fn func(stream.Repository, event.Repository) error) error {
	return fn(t.Streams, t.Events)
}
