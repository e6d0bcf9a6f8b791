package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/normanking/wisp/internal/activity"
	"github.com/normanking/wisp/internal/emotion"
	"github.com/normanking/wisp/internal/logging"
	"github.com/normanking/wisp/internal/memory"
	"github.com/normanking/wisp/internal/pipeline"
)

type decayCountingStore struct {
	decays int
	err    error
}

func (s *decayCountingStore) AddOrUpdate(ctx context.Context, e *memory.Entry) error { return nil }
func (s *decayCountingStore) GetRelevant(ctx context.Context, input string, max int) ([]memory.Entry, error) {
	return nil, nil
}
func (s *decayCountingStore) ApplyDecay(ctx context.Context) error {
	s.decays++
	return s.err
}
func (s *decayCountingStore) AddLearningSummary(ctx context.Context, text, source string) error {
	return nil
}
func (s *decayCountingStore) Close() error { return nil }

func testScheduler(t *testing.T, store memory.Store) *Scheduler {
	t.Helper()
	logger, err := logging.New(&logging.Config{LogDir: t.TempDir(), Console: false})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	orch := pipeline.New(pipeline.Config{
		Window:   activity.NewWindow(4),
		Machine:  emotion.NewMachine(emotion.DefaultMachineConfig()),
		Cooldown: emotion.NewCooldown(nil),
		Logger:   logger,
	})

	s, err := New(store, orch, logger)
	require.NoError(t, err)
	return s
}

func TestNew_RegistersJobs(t *testing.T) {
	s := testScheduler(t, &decayCountingStore{})
	require.Len(t, s.cron.Entries(), 2)
}

func TestRunDecay(t *testing.T) {
	store := &decayCountingStore{}
	s := testScheduler(t, store)

	s.runDecay()
	require.Equal(t, 1, store.decays)

	// A failing pass is logged, not fatal.
	store.err = errors.New("disk full")
	s.runDecay()
	require.Equal(t, 2, store.decays)
}

func TestStartStop(t *testing.T) {
	s := testScheduler(t, &decayCountingStore{})
	s.Start()
	s.Stop()
}
