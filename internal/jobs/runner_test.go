package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/piwi3910/platenest/internal/arrange"
	"github.com/piwi3910/platenest/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScene(parts int) *model.Scene {
	scene := model.NewScene()
	scene.Objects = append(scene.Objects, model.NewObject("part", model.RectOutline(30, 30), parts))
	return &scene
}

// gatedLocker blocks its second Lock, taken by Finalize, until hold is
// closed.
type gatedLocker struct {
	mu    sync.Mutex
	calls atomic.Int32
	hold  chan struct{}
}

func (g *gatedLocker) Lock() {
	if g.calls.Add(1) == 2 {
		<-g.hold
	}
	g.mu.Lock()
}

func (g *gatedLocker) Unlock() { g.mu.Unlock() }

func wait(t *testing.T, r *Runner, id string) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := r.Wait(ctx, id)
	require.NoError(t, err)
	return st
}

func TestRunner_RunsJob(t *testing.T) {
	var mu sync.Mutex
	scene := testScene(4)
	r := NewRunner(&mu)

	id, err := r.Start(context.Background(), arrange.NewJob(scene, arrange.ModeAll))
	require.NoError(t, err)

	st := wait(t, r, id)
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 4, st.Done)
	assert.Equal(t, arrange.StatusDone, st.Message)
	require.NotNil(t, st.Result)
	assert.Equal(t, 4, st.Result.Arranged)

	_, running := r.Running()
	assert.False(t, running)
	assert.False(t, r.Cancel(id), "finished jobs cannot be cancelled")
}

func TestRunner_BusyWhileRunning(t *testing.T) {
	lock := &gatedLocker{hold: make(chan struct{})}
	r := NewRunner(lock)

	id, err := r.Start(context.Background(), arrange.NewJob(testScene(3), arrange.ModeAll))
	require.NoError(t, err)

	cur, running := r.Running()
	assert.True(t, running)
	assert.Equal(t, id, cur)
	_, err = r.Start(context.Background(), arrange.NewJob(testScene(1), arrange.ModeAll))
	assert.ErrorIs(t, err, ErrBusy)
	close(lock.hold)

	wait(t, r, id)
	second, err := r.Start(context.Background(), arrange.NewJob(testScene(1), arrange.ModeAll))
	require.NoError(t, err)
	assert.Equal(t, StateDone, wait(t, r, second).State)
}

func TestRunner_CancelledContext(t *testing.T) {
	var mu sync.Mutex
	scene := testScene(3)
	before := scene.Transforms()
	r := NewRunner(&mu)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id, err := r.Start(ctx, arrange.NewJob(scene, arrange.ModeAll))
	require.NoError(t, err)

	st := wait(t, r, id)
	assert.Equal(t, StateCancelled, st.State)
	assert.Equal(t, arrange.StatusCanceled, st.Message)
	assert.Nil(t, st.Result)
	assert.Equal(t, before, scene.Transforms())
}

func TestRunner_PrepareFailure(t *testing.T) {
	var mu sync.Mutex
	scene := testScene(1)
	scene.Config.BrimWidth = 30
	scene.Objects = append(scene.Objects, model.NewObject("flat", model.Outline{{X: 0, Y: 0}, {X: 5, Y: 0}}, 1))
	r := NewRunner(&mu)

	id, err := r.Start(context.Background(), arrange.NewJob(scene, arrange.ModeAll))
	require.NoError(t, err)

	st := wait(t, r, id)
	assert.Equal(t, StateFailed, st.State)
	assert.Contains(t, st.Error, "brim inflation failed")
}

func TestRunner_Subscribe(t *testing.T) {
	var mu sync.Mutex
	r := NewRunner(&mu)

	id, err := r.Start(context.Background(), arrange.NewJob(testScene(3), arrange.ModeAll))
	require.NoError(t, err)

	ch, unsubscribe, err := r.Subscribe(id)
	require.NoError(t, err)
	defer unsubscribe()

	var last Status
	for st := range ch {
		last = st
	}
	assert.Equal(t, StateDone, last.State)
	assert.Equal(t, id, last.ID)

	// Subscribing to a finished job yields its final status
	ch, _, err = r.Subscribe(id)
	require.NoError(t, err)
	st, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, StateDone, st.State)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestRunner_UnknownJob(t *testing.T) {
	r := NewRunner(&sync.Mutex{})
	_, ok := r.Status("nope")
	assert.False(t, ok)
	assert.False(t, r.Cancel("nope"))
	_, _, err := r.Subscribe("nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
	_, err = r.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestRunner_ForgetsOldFinishedJobs(t *testing.T) {
	var mu sync.Mutex
	r := NewRunner(&mu)
	r.Retain = 2

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := r.Start(context.Background(), arrange.NewJob(testScene(1), arrange.ModeAll))
		require.NoError(t, err)
		assert.Equal(t, StateDone, wait(t, r, id).State)
		ids = append(ids, id)
	}

	for _, id := range ids[:2] {
		_, ok := r.Status(id)
		assert.False(t, ok, "job %s should have been forgotten", id)
		_, err := r.Wait(context.Background(), id)
		assert.ErrorIs(t, err, ErrUnknownJob)
	}
	for _, id := range ids[2:] {
		st, ok := r.Status(id)
		require.True(t, ok)
		assert.Equal(t, StateDone, st.State)
	}
	r.mu.Lock()
	assert.Len(t, r.runs, 2)
	r.mu.Unlock()
}
