package schedule

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"snatcher/internal/scrape"
)

type countingSweeper struct {
	runs atomic.Int64
	err  error
}

func (s *countingSweeper) RunSweep(ctx context.Context) ([]scrape.Outcome, error) {
	s.runs.Add(1)
	return nil, s.err
}

func TestScheduler_Run(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("sweeps immediately and on every tick", func(t *testing.T) {
		sweeper := &countingSweeper{}
		s := New(logger, sweeper, 20*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool {
			return sweeper.runs.Load() >= 3
		}, 2*time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop after cancel")
		}
	})

	t.Run("sweep errors do not stop the loop", func(t *testing.T) {
		sweeper := &countingSweeper{err: errors.New("db unreachable")}
		s := New(logger, sweeper, 20*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool {
			return sweeper.runs.Load() >= 2
		}, 2*time.Second, 5*time.Millisecond)

		cancel()
		<-done
	})

	t.Run("no sweep after cancellation", func(t *testing.T) {
		sweeper := &countingSweeper{}
		s := New(logger, sweeper, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s.Run(ctx)
		assert.Zero(t, sweeper.runs.Load())
	})
}
