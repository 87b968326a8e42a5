package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhwen/stockpool/backend/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	ran      chan struct{}
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	j.ran <- struct{}{}
	return nil
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())

	job := &fakeJob{name: "snap", schedule: "@hourly", ran: make(chan struct{}, 1)}
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	job := &fakeJob{name: "snap", schedule: "not a cron expr", ran: make(chan struct{}, 1)}
	assert.Error(t, s.AddJob(job))
}

func TestRunJobRecordsHistory(t *testing.T) {
	s := New(logger.NewNop())

	job := &fakeJob{name: "snap", schedule: "@hourly", ran: make(chan struct{}, 1)}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("snap"))
	select {
	case <-job.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	require.Eventually(t, func() bool {
		history, err := s.GetJobHistory("snap")
		return err == nil && len(history.Results) == 1
	}, 2*time.Second, 10*time.Millisecond)

	history, err := s.GetJobHistory("snap")
	require.NoError(t, err)
	latest := history.Latest()
	require.NotNil(t, latest)
	assert.True(t, latest.Success)
	assert.Equal(t, 1.0, history.SuccessRate())
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.NewNop())
	assert.Error(t, s.RunJob("missing"))
}
