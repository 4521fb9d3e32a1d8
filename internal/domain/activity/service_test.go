package activity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cinderlab/cinder/internal/domain/activity"
	"github.com/cinderlab/cinder/internal/repository/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_StartFinish(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := &mocks.ActivityRepository{}
	svc := activity.NewService(repo, clock, nil)

	run := svc.Start(activity.KindSync, "gid-1")
	run.Uploaded = 2
	clock.Advance(3 * time.Second)

	repo.On("Log", mock.Anything, mock.MatchedBy(func(r *activity.Run) bool {
		return r.Status == activity.StatusSucceeded && r.Uploaded == 2 && r.Error == ""
	})).Return(nil).Once()

	require.NoError(t, svc.Finish(ctx, run, nil))
	require.Equal(t, 3*time.Second, run.Duration())
	repo.AssertExpectations(t)
}

func TestActivityService_FinishWithError(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	svc := activity.NewService(repo, clockwork.NewFakeClock(), nil)

	run := svc.Start(activity.KindPull, "gid-2")
	repo.On("Log", mock.Anything, run).Return(nil).Once()

	require.NoError(t, svc.Finish(ctx, run, errors.New("connection reset")))
	require.Equal(t, activity.StatusFailed, run.Status)
	require.Equal(t, "connection reset", run.Error)
}

func TestActivityService_History(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	svc := activity.NewService(repo, nil, nil)

	opts := activity.ListOptions{ProjectGlobalID: "gid-1", Limit: 5}
	repo.On("List", ctx, opts).Return([]activity.Run{{ID: 1}}, nil)

	runs, err := svc.History(ctx, opts)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.ErrorIs(t, svc.Finish(ctx, nil, nil), activity.ErrInvalidInput)
}
