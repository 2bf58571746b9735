package mappers

import (
	"time"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/projection"
	"github.com/ateliercolor/presstrack/internal/status"
	"github.com/ateliercolor/presstrack/internal/store/model"
)

// JobToApi builds the outbound job with the derived presentation fields.
// Priority, urgency, duration and category are computed on every read and
// never read back from storage.
func JobToApi(j model.Job, thresholds projection.Thresholds, now time.Time) api.Job {
	derived := thresholds.Project(projection.JobFacts{
		Status:      status.Status(j.Status),
		MachineType: status.MachineType(j.MachineType),
		Quantity:    j.Quantity,
		CreatedAt:   j.CreatedAt,
	}, now)

	out := api.Job{
		ID:                       j.ID,
		ClientName:               j.ClientName,
		MachineType:              j.MachineType,
		Status:                   j.Status,
		StatusKnown:              j.StatusKnown,
		Quantity:                 j.Quantity,
		Version:                  j.Version,
		CreatedAt:                j.CreatedAt,
		UpdatedAt:                j.UpdatedAt,
		Priority:                 string(derived.Priority),
		IsUrgent:                 derived.IsUrgent,
		EstimatedDurationMinutes: derived.EstimatedDurationMinutes,
		DisplayCategory:          string(derived.DisplayCategory),
	}
	for _, entry := range j.History {
		out.History = append(out.History, TransitionToApi(entry))
	}
	return out
}

func JobListToApi(jobs model.JobList, thresholds projection.Thresholds, now time.Time) []api.Job {
	out := make([]api.Job, 0, len(jobs))
	for _, j := range jobs {
		// history is not preloaded on list reads
		j.History = nil
		out = append(out, JobToApi(j, thresholds, now))
	}
	return out
}

func TransitionToApi(t model.Transition) api.TransitionRecord {
	return api.TransitionRecord{
		ID:         t.ID,
		JobID:      t.JobID,
		FromStatus: t.FromStatus,
		ToStatus:   t.ToStatus,
		ActorRole:  t.ActorRole,
		ActorID:    t.ActorID,
		Comment:    t.Comment,
		At:         t.At,
		Seq:        t.Seq,
	}
}

// TransitionEventFromJob builds the realtime envelope payload for an accepted
// transition.
func TransitionEventFromJob(j model.Job, entry model.Transition, thresholds projection.Thresholds, now time.Time) api.Event {
	snapshot := JobToApi(j, thresholds, now)
	return api.Event{
		Kind:       api.EventJobTransitioned,
		JobID:      j.ID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		ActorRole:  entry.ActorRole,
		At:         entry.At,
		Seq:        entry.Seq,
		Job:        &snapshot,
	}
}

// CreatedEventFromJob builds the realtime envelope payload for a new job.
func CreatedEventFromJob(j model.Job, actorRole string, thresholds projection.Thresholds, now time.Time) api.Event {
	snapshot := JobToApi(j, thresholds, now)
	return api.Event{
		Kind:      api.EventJobCreated,
		JobID:     j.ID,
		ToStatus:  j.Status,
		ActorRole: actorRole,
		At:        j.CreatedAt,
		Seq:       j.Version,
		Job:       &snapshot,
	}
}
