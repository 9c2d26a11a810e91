package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockMaintainer struct {
	prunes  atomic.Int32
	vacuums atomic.Int32
	keep    atomic.Int32
	err     error
}

func (m *mockMaintainer) PruneActivities(_ context.Context, keep int) (int64, error) {
	m.prunes.Add(1)
	m.keep.Store(int32(keep))
	return 3, m.err
}

func (m *mockMaintainer) Vacuum(context.Context) error {
	m.vacuums.Add(1)
	return nil
}

func TestNewScheduler_Specs(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"", false},
		{"@every 15m", false},
		{"@hourly", false},
		{"0 3 * * *", false},
		{"*/5 * * * *", false},
		{"not a cron", true},
		{"0 0 3 * * *", true}, // seconds field not accepted
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := NewScheduler(tt.spec, nil, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.spec == "" {
				assert.Equal(t, DefaultSchedule, s.Spec())
			}
		})
	}
}

func TestCalculateNextRun(t *testing.T) {
	s, err := NewScheduler("0 3 * * *", nil, nil)
	require.NoError(t, err)
	from := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 2, 3, 0, 0, 0, time.UTC), s.CalculateNextRun(from))

	s, err = NewScheduler("@every 1h", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, from.Add(time.Hour), s.CalculateNextRun(from))
}

func TestRunAll_MaintenanceJobs(t *testing.T) {
	m := &mockMaintainer{}
	s, err := NewScheduler("", MaintenanceJobs(m, 20, nil), nil)
	require.NoError(t, err)

	s.RunAll(context.Background())
	assert.Equal(t, int32(1), m.prunes.Load())
	assert.Equal(t, int32(1), m.vacuums.Load())
	assert.Equal(t, int32(20), m.keep.Load())

	res, ok := s.LastRun("vacuum")
	require.True(t, ok)
	assert.Empty(t, res.Error)
}

func TestRunAll_FailureRecordedAndOthersRun(t *testing.T) {
	m := &mockMaintainer{err: errors.New("database is locked")}
	s, err := NewScheduler("", MaintenanceJobs(m, 5, nil), nil)
	require.NoError(t, err)

	s.RunAll(context.Background())
	res, ok := s.LastRun("prune-activities")
	require.True(t, ok)
	assert.Equal(t, "database is locked", res.Error)
	assert.Equal(t, int32(1), m.vacuums.Load())
}

func TestRunAll_SkipsInflight(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s, err := NewScheduler("", []Job{{
		Name: "slow",
		Run: func(context.Context) error {
			runs.Add(1)
			<-release
			return nil
		},
	}}, nil)
	require.NoError(t, err)

	go s.RunAll(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	s.RunAll(context.Background())
	assert.Equal(t, int32(1), runs.Load())
	close(release)
}

func TestScheduler_LoopRunsWhenDue(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var runs atomic.Int32
	s, err := NewScheduler("@every 1h", []Job{{
		Name: "count",
		Run:  func(context.Context) error { runs.Add(1); return nil },
	}}, nil)
	require.NoError(t, err)
	s.now = clock.Now
	s.tick = 2 * time.Millisecond

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })
	assert.Equal(t, clock.Now().Add(time.Hour), s.Next())

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load())

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return s.Next().Equal(clock.Now().Add(time.Hour)) }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_StartTwiceAndStop(t *testing.T) {
	s, err := NewScheduler("", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
