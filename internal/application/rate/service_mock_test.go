package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	streamMocks "github.com/streampay/streampay/internal/domain/stream/mocks"
	"github.com/streampay/streampay/internal/infrastructure/memory"
)

func TestNetRatePropagatesRepositoryFailure(t *testing.T) {
	repo := new(streamMocks.MockRepository)
	repo.On("ListByAccount", mock.Anything, "bob", maxAggregated, 0).
		Return(nil, errors.New("connection refused"))

	svc := NewService(repo, memory.NewClock(time.Unix(50, 0)), zerolog.Nop())

	_, err := svc.NetRate(context.Background(), "bob")
	require.Error(t, err)
	require.Contains(t, err.Error(), "list streams for bob")
	repo.AssertExpectations(t)
}
