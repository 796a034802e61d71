package rate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/streampay/streampay/internal/domain/ledger"
	"github.com/streampay/streampay/internal/domain/stream"
)

// maxAggregated bounds how many streams one aggregation walks. An account
// participating in more streams than this is outside the design envelope.
const maxAggregated = 10_000

// NetRate is an account's instantaneous value flow: incoming active streams
// count positive, outgoing negative. Exact as a rational; OctasPerSecond is
// the display rendering.
type NetRate struct {
	Rate           *big.Rat `json:"-"`
	OctasPerSecond float64  `json:"octasPerSecond"`
	Incoming       int      `json:"incomingStreams"`
	Outgoing       int      `json:"outgoingStreams"`
}

// Service aggregates per-second rates over an account's active streams. It
// is a pure read-side computation over the repository's current state,
// recomputed on demand and never cached across mutations.
type Service struct {
	streams stream.Repository
	clock   ledger.Clock
	logger  zerolog.Logger
}

func NewService(streams stream.Repository, clock ledger.Clock, logger zerolog.Logger) *Service {
	return &Service{
		streams: streams,
		clock:   clock,
		logger:  logger.With().Str("service", "rate").Logger(),
	}
}

// NetRate sums the rates of the account's active streams at the current
// instant. Pending, completed and cancelled streams contribute zero.
func (s *Service) NetRate(ctx context.Context, account string) (NetRate, error) {
	now := s.clock.Now().UTC()
	streams, err := s.streams.ListByAccount(ctx, account, maxAggregated, 0)
	if err != nil {
		return NetRate{}, fmt.Errorf("list streams for %s: %w", account, err)
	}

	net := new(big.Rat)
	result := NetRate{}
	for _, st := range streams {
		if stream.Classify(st, now) != stream.StatusActive {
			continue
		}
		r := stream.Rate(st)
		switch account {
		case st.Recipient:
			net.Add(net, r)
			result.Incoming++
		case st.Sender:
			net.Sub(net, r)
			result.Outgoing++
		}
	}
	result.Rate = net
	result.OctasPerSecond, _ = net.Float64()
	return result, nil
}
