// Package client holds the dashboard-side pieces of the realtime protocol:
// the reconciler merging optimistic local state with authoritative events and
// the reconnecting stream feeding it.
package client

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
)

type entry struct {
	job     api.Job
	pending bool
}

// Reconciler maintains the local copy of subscribed jobs. Local user actions
// are applied optimistically and tagged pending; the authoritative event
// always wins when it arrives, whether or not it matches the optimistic
// guess. It is a pure data structure with no transport dependency.
type Reconciler struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entry
}

func NewReconciler() *Reconciler {
	return &Reconciler{jobs: make(map[uuid.UUID]*entry)}
}

// Seed installs a job snapshot without marking it pending, typically from the
// initial REST list before the stream starts.
func (r *Reconciler) Seed(jobs ...api.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range jobs {
		r.jobs[job.ID] = &entry{job: job}
	}
}

// ApplyLocal records an optimistic transition for immediate display. The
// entry stays pending until an authoritative event for the job lands.
func (r *Reconciler) ApplyLocal(job api.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = &entry{job: job, pending: true}
}

// ApplyEvent merges an authoritative event. Events that are not newer than
// the local copy are ignored, which makes replay and duplicate delivery safe.
// Unknown jobs are inserted. Returns true when local state changed.
func (r *Reconciler) ApplyEvent(ev api.Event) bool {
	if ev.Job == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, known := r.jobs[ev.JobID]
	// a pending entry is an optimistic guess: the authoritative state
	// replaces it even when the two match
	if known && !current.pending && !newer(*ev.Job, current.job) {
		return false
	}

	r.jobs[ev.JobID] = &entry{job: *ev.Job}
	return true
}

func newer(incoming, local api.Job) bool {
	if incoming.Version != local.Version {
		return incoming.Version > local.Version
	}
	return incoming.UpdatedAt.After(local.UpdatedAt)
}

// Get returns the local copy of a job and whether it is known.
func (r *Reconciler) Get(id uuid.UUID) (api.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return api.Job{}, false
	}
	return e.job, true
}

// Pending reports whether the job carries an unconfirmed optimistic change.
func (r *Reconciler) Pending(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	return ok && e.pending
}

// Jobs returns a snapshot of all known jobs ordered by id for stable display.
func (r *Reconciler) Jobs() []api.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]api.Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e.job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Len returns the number of known jobs.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
