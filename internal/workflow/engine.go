// Package workflow owns the canonical state machine for a dossier's lifecycle.
// It validates and applies transitions, rejects illegal ones and produces the
// history entry handed to the persistence and broadcast collaborators. Apply is
// a pure function: it builds the new job state without side effects, so callers
// must treat the load-apply-save sequence as atomic relative to job.Status.
package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ateliercolor/presstrack/internal/status"
)

// JobState is the slice of a persisted job the engine needs to decide a
// transition.
type JobState struct {
	ID          uuid.UUID
	MachineType status.MachineType
	Status      status.Status
	Version     int64
	UpdatedAt   time.Time
}

// Request describes a transition attempt by an actor. Target may arrive as a
// canonical code or as raw producer text; raw text goes through the normalizer.
type Request struct {
	Target    string
	ActorRole status.Role
	ActorID   string
	Comment   string
	At        time.Time
}

// Entry is the append-only history record produced by an accepted transition.
// Seq equals the job version at apply time and is the single authoritative
// per-job ordering used by event delivery and replay.
type Entry struct {
	From      status.Status
	To        status.Status
	ActorRole status.Role
	ActorID   string
	Comment   string
	At        time.Time
	Seq       int64
}

// Result is the outcome of an accepted transition. Entry is nil for an
// idempotent re-submission: the no-op still advances Version and UpdatedAt but
// appends nothing to the history.
type Result struct {
	Status    status.Status
	Version   int64
	UpdatedAt time.Time
	Entry     *Entry
}

type edge struct {
	from status.Status
	to   status.Status
}

// policy lists who may initiate a transition. operator means any printer
// operator whose press matches the job's machine type.
type policy struct {
	any      bool
	operator bool
	roles    []status.Role
}

var transitions = buildTransitionTable()

func buildTransitionTable() map[edge]policy {
	table := make(map[edge]policy)
	allow := func(from, to status.Status, pol policy) {
		table[edge{from, to}] = pol
	}

	preparer := policy{roles: []status.Role{status.RolePreparer}}
	deliverer := policy{roles: []status.Role{status.RoleDeliverer}}
	operator := policy{operator: true}
	anyRole := policy{any: true}

	allow(status.Draft, status.InProgress, preparer)
	allow(status.InProgress, status.ToReview, anyRole)
	allow(status.InProgress, status.ReadyForPrint, preparer)
	allow(status.ToReview, status.InProgress, preparer)
	allow(status.ToReview, status.Printing, operator)
	allow(status.ReadyForPrint, status.Printing, operator)
	allow(status.Printing, status.ToReview, anyRole)
	allow(status.Printing, status.Printed, operator)
	allow(status.Printed, status.ReadyForDelivery, policy{operator: true, roles: []status.Role{status.RolePreparer}})
	allow(status.ReadyForDelivery, status.OutForDelivery, deliverer)
	allow(status.ReadyForDelivery, status.Completed, policy{roles: []status.Role{status.RolePreparer, status.RoleDeliverer}})
	allow(status.OutForDelivery, status.Delivered, deliverer)

	return table
}

func (p policy) permits(role status.Role, machine status.MachineType) bool {
	if p.any {
		return true
	}
	if p.operator && role.Operates(machine) {
		return true
	}
	for _, r := range p.roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsLegal reports whether the transition table contains the given edge.
func IsLegal(from, to status.Status) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// LegalTargets returns the statuses reachable from the given status, in
// workflow order.
func LegalTargets(from status.Status) []status.Status {
	var out []status.Status
	for _, to := range status.All() {
		if IsLegal(from, to) {
			out = append(out, to)
		}
	}
	return out
}

// Engine applies the transition rules. It is stateless and safe for concurrent
// use; serialization of concurrent transitions on the same job belongs to the
// persistence layer's version check.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Apply validates req against job and returns the new job state. The requested
// status is normalized first, then checked against the transition table, then
// the comment rule, then role authorization. A request whose resolved target
// equals the current status is an accepted no-op.
func (e *Engine) Apply(job JobState, req Request) (Result, error) {
	target, err := resolveTarget(req.Target)
	if err != nil {
		return Result{}, err
	}

	from, legacy := currentStatus(job)

	if target == from {
		return Result{
			Status:    from,
			Version:   job.Version + 1,
			UpdatedAt: req.At,
		}, nil
	}

	if legacy {
		// Legacy-data exception: a job carrying an unclassifiable status can
		// only be pulled back into preparation by a preparer.
		if req.ActorRole != status.RolePreparer || target != status.InProgress {
			return Result{}, NewErrIllegalTransition(job.Status, target)
		}
	} else {
		pol, ok := transitions[edge{from, target}]
		if !ok {
			return Result{}, NewErrIllegalTransition(from, target)
		}
		if target == status.ToReview && strings.TrimSpace(req.Comment) == "" {
			return Result{}, NewErrMissingComment(target)
		}
		if !pol.permits(req.ActorRole, job.MachineType) {
			return Result{}, NewErrForbidden(req.ActorRole, from, target)
		}
	}

	version := job.Version + 1
	return Result{
		Status:    target,
		Version:   version,
		UpdatedAt: req.At,
		Entry: &Entry{
			From:      job.Status,
			To:        target,
			ActorRole: req.ActorRole,
			ActorID:   req.ActorID,
			Comment:   strings.TrimSpace(req.Comment),
			At:        req.At,
			Seq:       version,
		},
	}, nil
}

// resolveTarget accepts canonical codes verbatim and classifies anything else.
func resolveTarget(raw string) (status.Status, error) {
	if s, ok := status.Parse(raw); ok {
		return s, nil
	}
	s, ok := status.Normalize(raw)
	if !ok {
		return "", NewErrUnknownStatus(raw)
	}
	return s, nil
}

// currentStatus normalizes a legacy raw status still present in stored data.
// The second return is true when the stored status cannot be classified at all.
func currentStatus(job JobState) (status.Status, bool) {
	if job.Status.IsCanonical() {
		return job.Status, false
	}
	if s, ok := status.Normalize(string(job.Status)); ok {
		return s, false
	}
	return job.Status, true
}
