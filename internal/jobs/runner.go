// Package jobs runs arrange jobs on a background goroutine, one at a time,
// and publishes their progress.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/piwi3910/platenest/internal/arrange"
)

var (
	// ErrBusy is returned by Start while another job is running.
	ErrBusy = errors.New("an arrange job is already running")
	// ErrUnknownJob is returned for IDs the runner has never seen.
	ErrUnknownJob = errors.New("unknown job")
)

// State of a job.
type State string

const (
	StateRunning   State = "running"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Status is a snapshot of a job's progress.
type Status struct {
	ID      string          `json:"id"`
	State   State           `json:"state"`
	Done    int             `json:"done"`
	Total   int             `json:"total"`
	Message string          `json:"message"`
	Result  *arrange.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Finished reports whether the job has stopped.
func (s Status) Finished() bool { return s.State != StateRunning }

type run struct {
	status Status
	cancel context.CancelFunc
	done   chan struct{}
	subs   []chan Status
}

// DefaultRetain is how many finished jobs a runner remembers.
const DefaultRetain = 32

// Runner executes arrange jobs. Scene is the lock guarding the scene the
// jobs work on: Prepare and Finalize run while holding it, Process does
// not.
//
// Only the last Retain finished jobs stay queryable; older ones are
// forgotten and report ErrUnknownJob.
type Runner struct {
	Scene  sync.Locker
	Retain int

	mu       sync.Mutex
	runs     map[string]*run
	finished []string // oldest first
	current  string
}

func NewRunner(scene sync.Locker) *Runner {
	return &Runner{Scene: scene, Retain: DefaultRetain, runs: map[string]*run{}}
}

// Start prepares job and processes it in the background. Cancelling ctx
// cancels the job. It returns the job ID, or ErrBusy when a job is still
// running.
func (r *Runner) Start(ctx context.Context, job *arrange.Job) (string, error) {
	r.mu.Lock()
	if r.current != "" {
		r.mu.Unlock()
		return "", ErrBusy
	}
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(ctx)
	rn := &run{
		status: Status{ID: id, State: StateRunning},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.runs[id] = rn
	r.current = id
	r.mu.Unlock()

	job.Status = func(done int, msg string) {
		r.update(id, func(s *Status) {
			s.Done = done
			s.Message = msg
		})
	}

	r.Scene.Lock()
	err := job.Prepare()
	r.Scene.Unlock()
	if err != nil {
		cancel()
		r.finish(id, Status{State: StateFailed, Message: arrange.StatusFailed, Error: err.Error()})
		return id, nil
	}
	r.update(id, func(s *Status) { s.Total = job.Count() })
	slog.Info("arrange job started", "job", id, "items", job.Count())

	go func() {
		defer cancel()
		perr := job.Process(ctx)

		r.Scene.Lock()
		res, applied := job.Finalize()
		r.Scene.Unlock()

		final := Status{State: StateDone, Done: job.Count(), Message: arrange.StatusDone}
		switch {
		case perr != nil:
			final.State = StateFailed
			final.Message = arrange.StatusFailed
			final.Error = perr.Error()
		case job.Cancelled():
			final.State = StateCancelled
			final.Message = arrange.StatusCanceled
		case applied:
			final.Result = &res
		}
		r.finish(id, final)
	}()
	return id, nil
}

// Cancel asks the job to stop. It reports whether the job was running.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok || rn.status.Finished() {
		return false
	}
	rn.cancel()
	return true
}

// Status returns the current status of job id.
func (r *Runner) Status(id string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return Status{}, false
	}
	return rn.status, true
}

// Running returns the ID of the running job, if any.
func (r *Runner) Running() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != ""
}

// Wait blocks until job id finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (Status, error) {
	r.mu.Lock()
	rn, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return Status{}, ErrUnknownJob
	}
	select {
	case <-rn.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return rn.status, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Subscribe returns a channel receiving every status change of job id,
// starting with the current one. The channel is closed when the job
// finishes or unsubscribe is called. Slow receivers miss intermediate
// updates but always get the final one.
func (r *Runner) Subscribe(id string) (<-chan Status, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return nil, nil, ErrUnknownJob
	}
	ch := make(chan Status, 16)
	ch <- rn.status
	if rn.status.Finished() {
		close(ch)
		return ch, func() {}, nil
	}
	rn.subs = append(rn.subs, ch)

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, c := range rn.subs {
			if c == ch {
				rn.subs = append(rn.subs[:i], rn.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe, nil
}

func (r *Runner) update(id string, fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok || rn.status.Finished() {
		return
	}
	fn(&rn.status)
	for _, ch := range rn.subs {
		select {
		case ch <- rn.status:
		default:
		}
	}
}

func (r *Runner) finish(id string, final Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn := r.runs[id]
	final.ID = id
	final.Total = rn.status.Total
	rn.status = final
	for _, ch := range rn.subs {
		// Make room for the final status
		select {
		case <-ch:
		default:
		}
		ch <- final
		close(ch)
	}
	rn.subs = nil
	if r.current == id {
		r.current = ""
	}
	close(rn.done)
	r.finished = append(r.finished, id)
	r.prune()
	slog.Info("arrange job finished", "job", id, "state", final.State)
}

// prune forgets the oldest finished jobs beyond Retain. Callers hold r.mu.
func (r *Runner) prune() {
	keep := r.Retain
	if keep < 1 {
		keep = 1
	}
	for len(r.finished) > keep {
		delete(r.runs, r.finished[0])
		r.finished = r.finished[1:]
	}
}
