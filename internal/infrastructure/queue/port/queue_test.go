package port_test

import (
	"context"
	"testing"

	"go-chatroom/internal/infrastructure/queue/port"

	"github.com/stretchr/testify/require"
)

func TestAttempt(t *testing.T) {
	req := require.New(t)

	_, ok := port.AttemptFrom(context.Background())
	req.False(ok)

	ctx := port.WithAttempt(context.Background(), port.Attempt{Retried: 2, MaxRetry: 5})
	a, ok := port.AttemptFrom(ctx)
	req.True(ok)
	req.Equal(port.Attempt{Retried: 2, MaxRetry: 5}, a)
	req.False(a.Final())

	req.True(port.Attempt{Retried: 5, MaxRetry: 5}.Final())
	req.True(port.Attempt{}.Final())
}
