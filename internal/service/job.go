// Package service orchestrates the workflow engine, the store and the
// broadcaster. It is the only write path for job status.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/auth"
	"github.com/ateliercolor/presstrack/internal/events"
	"github.com/ateliercolor/presstrack/internal/projection"
	"github.com/ateliercolor/presstrack/internal/service/mappers"
	"github.com/ateliercolor/presstrack/internal/status"
	"github.com/ateliercolor/presstrack/internal/store"
	"github.com/ateliercolor/presstrack/internal/store/model"
	"github.com/ateliercolor/presstrack/internal/workflow"
	"github.com/ateliercolor/presstrack/pkg/metrics"
)

type JobService struct {
	store       store.Store
	engine      *workflow.Engine
	broadcaster *events.Broadcaster
	thresholds  projection.Thresholds
}

func NewJobService(s store.Store, broadcaster *events.Broadcaster, thresholds projection.Thresholds) *JobService {
	return &JobService{
		store:       s,
		engine:      workflow.NewEngine(),
		broadcaster: broadcaster,
		thresholds:  thresholds,
	}
}

// JobFilter narrows list reads. Empty fields are ignored.
type JobFilter struct {
	MachineType string
	Statuses    []string
	ClientName  string
}

func (s *JobService) ListJobs(ctx context.Context, filter *JobFilter) (model.JobList, error) {
	storeFilter := store.NewJobQueryFilter()
	if filter != nil {
		if filter.MachineType != "" {
			storeFilter = storeFilter.ByMachineType(filter.MachineType)
		}
		if len(filter.Statuses) > 0 {
			storeFilter = storeFilter.ByStatus(filter.Statuses...)
		}
		if filter.ClientName != "" {
			storeFilter = storeFilter.ByClientName(filter.ClientName)
		}
	}
	return s.store.Job().List(ctx, storeFilter)
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	return job, nil
}

func (s *JobService) GetHistory(ctx context.Context, id uuid.UUID) ([]model.Transition, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Job().History(ctx, id)
}

// CreateJob registers a new dossier. Only preparers create jobs and the
// initial status must classify to DRAFT or IN_PROGRESS.
func (s *JobService) CreateJob(ctx context.Context, resource api.JobCreate) (*model.Job, error) {
	user := auth.MustHaveUser(ctx)
	if user.Role != status.RolePreparer {
		return nil, NewErrCreationForbidden(string(user.Role))
	}

	initial, err := resolveInitialStatus(resource.Status)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Job().Create(ctx, mappers.JobFormFromApi(resource, initial).ToJob())
	if err != nil {
		return nil, err
	}

	zap.S().Named("job_service").Infow("job created",
		"job_id", created.ID, "client", created.ClientName, "status", created.Status, "actor", user.Username)

	s.broadcaster.Publish(mappers.CreatedEventFromJob(*created, string(user.Role), s.thresholds, time.Now().UTC()))
	return created, nil
}

func resolveInitialStatus(raw string) (status.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return status.Draft, nil
	}
	resolved, ok := status.Parse(raw)
	if !ok {
		resolved, ok = status.Normalize(raw)
	}
	if !ok {
		return "", workflow.NewErrUnknownStatus(raw)
	}
	if resolved != status.Draft && resolved != status.InProgress {
		return "", NewErrInvalidInitialStatus(raw)
	}
	return resolved, nil
}

// Transition is the sanctioned way to change a job's status. The engine
// decision and the compare-and-swap write keep concurrent actors serialized;
// a loser gets ErrStaleWrite and must reload and retry.
func (s *JobService) Transition(ctx context.Context, id uuid.UUID, request api.TransitionRequest) (*model.Job, error) {
	user := auth.MustHaveUser(ctx)

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.engine.Apply(workflow.JobState{
		ID:          job.ID,
		MachineType: status.MachineType(job.MachineType),
		Status:      status.Status(job.Status),
		Version:     job.Version,
		UpdatedAt:   job.UpdatedAt,
	}, workflow.Request{
		Target:    request.Status,
		ActorRole: user.Role,
		ActorID:   user.ID,
		Comment:   request.Comment,
		At:        now,
	})
	if err != nil {
		metrics.IncreaseTransitionsRejectedMetric(rejectionReason(err))
		return nil, err
	}

	update := store.JobUpdate{
		Status:      string(result.Status),
		StatusKnown: result.Status.IsCanonical(),
		Version:     result.Version,
		UpdatedAt:   result.UpdatedAt,
	}

	var entry *model.Transition
	if result.Entry != nil {
		entry = &model.Transition{
			FromStatus: string(result.Entry.From),
			ToStatus:   string(result.Entry.To),
			ActorRole:  string(result.Entry.ActorRole),
			ActorID:    result.Entry.ActorID,
			Comment:    optional(result.Entry.Comment),
			At:         result.Entry.At,
			Seq:        result.Entry.Seq,
		}
	}

	// The version update and the history insert must land together or not
	// at all; a job row that advanced without its entry is a silent audit gap.
	ctx, err = s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Job().ApplyTransition(ctx, id, job.Version, update, entry)
	if err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		if errors.Is(err, store.ErrStaleWrite) {
			metrics.IncreaseTransitionsRejectedMetric("stale_write")
		}
		return nil, err
	}

	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	if entry != nil {
		metrics.IncreaseTransitionsTotalMetric(entry.FromStatus, entry.ToStatus)
		zap.S().Named("job_service").Infow("job transitioned",
			"job_id", id, "from", entry.FromStatus, "to", entry.ToStatus, "actor", user.Username, "seq", entry.Seq)
		s.broadcaster.Publish(mappers.TransitionEventFromJob(*updated, *entry, s.thresholds, now))
	}

	return updated, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func rejectionReason(err error) string {
	switch err.(type) {
	case *workflow.ErrIllegalTransition:
		return "illegal_transition"
	case *workflow.ErrForbidden:
		return "forbidden"
	case *workflow.ErrMissingComment:
		return "missing_comment"
	case *workflow.ErrUnknownStatus:
		return "unknown_status"
	default:
		return "other"
	}
}
