package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrmarot/bidhouse/internal/domain"
)

func TestSweeperTicksImmediatelyAndStopsOnCancel(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedScheduled(t, "a1", 100)

	sweeper := NewSweeper(f.life, time.Hour, discardLogger())
	sweeper.now = func() time.Time { return f.now }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	// The startup tick applies due transitions without waiting an interval.
	require.Eventually(t, func() bool {
		a, err := f.auctions.GetByID(context.Background(), "a1")
		return err == nil && a.Status == domain.StatusLive
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
