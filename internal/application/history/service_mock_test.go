package history

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	eventMocks "github.com/streampay/streampay/internal/domain/event/mocks"
)

func TestStreamHistoryPropagatesRepositoryFailure(t *testing.T) {
	repo := new(eventMocks.MockRepository)
	repo.On("ListByStream", mock.Anything, int64(7)).
		Return(nil, errors.New("connection refused"))

	svc := NewService(repo, zerolog.Nop())

	_, err := svc.StreamHistory(context.Background(), 7)
	require.Error(t, err)
	require.Contains(t, err.Error(), "list events for stream 7")
	repo.AssertExpectations(t)
}
