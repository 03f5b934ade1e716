package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedulerAddAndTrigger(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())

	runs := 0
	require.NoError(t, s.AddJob(Job{Name: "count", Schedule: "@hourly", Run: func(ctx context.Context) error {
		runs++
		return nil
	}}))

	assert.Error(t, s.AddJob(Job{Name: "count", Schedule: "@hourly", Run: func(context.Context) error { return nil }}),
		"duplicate names are rejected")
	assert.Error(t, s.AddJob(Job{Name: "bad", Schedule: "not a schedule", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.AddJob(Job{Name: "norun", Schedule: "@hourly"}))

	require.NoError(t, s.TriggerJob("count"))
	assert.Equal(t, 1, runs)
	assert.Error(t, s.TriggerJob("missing"))
}

func TestSchedulerRecordsLastError(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	boom := errors.New("boom")
	require.NoError(t, s.AddJob(Job{Name: "fail", Schedule: "@daily", Run: func(context.Context) error { return boom }}))
	require.NoError(t, s.AddJob(Job{Name: "ok", Schedule: "@hourly", Run: func(context.Context) error { return nil }}))

	assert.ErrorIs(t, s.TriggerJob("fail"), boom)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "fail", jobs[0].Name)
	assert.Equal(t, "boom", jobs[0].LastErr)
	assert.Equal(t, "ok", jobs[1].Name)
	assert.Empty(t, jobs[1].LastErr)
}

func TestSchedulerNextRunAndRemove(t *testing.T) {
	s := NewScheduler(context.Background(), nil)
	require.NoError(t, s.AddJob(Job{Name: "hourly", Schedule: "@hourly", Run: func(context.Context) error { return nil }}))
	require.NoError(t, s.Start())
	defer s.Stop(time.Second)

	assert.Error(t, s.Start(), "already running")

	next, err := s.GetNextRun("hourly")
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(61*time.Minute)))

	require.NoError(t, s.RemoveJob("hourly"))
	assert.Error(t, s.RemoveJob("hourly"))
	_, err = s.GetNextRun("hourly")
	assert.Error(t, err)
}

func TestSchedulerSkipsAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(ctx, nil)
	ran := false
	require.NoError(t, s.AddJob(Job{Name: "j", Schedule: "@hourly", Run: func(context.Context) error {
		ran = true
		return nil
	}}))
	cancel()
	assert.ErrorIs(t, s.TriggerJob("j"), context.Canceled)
	assert.False(t, ran)
}
