// Package v1alpha1 holds the wire types exposed by the presstrack API and the
// realtime event stream.
package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

// Job is the outbound representation of a dossier. Priority, urgency, duration
// estimate and display category are derived on every read and never persisted.
type Job struct {
	ID                       uuid.UUID          `json:"id"`
	ClientName               string             `json:"clientName"`
	MachineType              string             `json:"machineType"`
	Status                   string             `json:"status"`
	StatusKnown              bool               `json:"statusKnown"`
	Quantity                 int                `json:"quantity"`
	Version                  int64              `json:"version"`
	CreatedAt                time.Time          `json:"createdAt"`
	UpdatedAt                time.Time          `json:"updatedAt"`
	Priority                 string             `json:"priority"`
	IsUrgent                 bool               `json:"isUrgent"`
	EstimatedDurationMinutes int                `json:"estimatedDurationMinutes"`
	DisplayCategory          string             `json:"displayCategory"`
	History                  []TransitionRecord `json:"history,omitempty"`
}

// TransitionRecord is one entry of a job's append-only history.
type TransitionRecord struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"jobId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ActorRole  string    `json:"actorRole"`
	ActorID    string    `json:"actorId"`
	Comment    *string   `json:"comment,omitempty"`
	At         time.Time `json:"at"`
	Seq        int64     `json:"seq"`
}

// JobCreate is the creation form. Status is optional; when present it must
// classify to DRAFT or IN_PROGRESS.
type JobCreate struct {
	ClientName  string `json:"clientName" validate:"required,client_name"`
	MachineType string `json:"machineType" validate:"required,oneof=ROLAND XEROX OTHER"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	Status      string `json:"status,omitempty" validate:"initial_status"`
}

// TransitionRequest asks the workflow engine to move a job to a new status.
// Status may be a canonical code or raw producer text.
type TransitionRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment,omitempty"`
}

// Error is the common error envelope.
type Error struct {
	Message string `json:"message"`
}

// Event kinds carried on the realtime stream.
const (
	EventJobCreated      = "job:created"
	EventJobTransitioned = "job:transitioned"
)

// Event is one message on the realtime stream. Seq is the per-job authoritative
// sequence; consumers must treat delivery as at-least-once and ignore events
// that are not newer than their local copy.
type Event struct {
	Kind       string    `json:"kind"`
	JobID      uuid.UUID `json:"jobId"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus"`
	ActorRole  string    `json:"actorRole"`
	At         time.Time `json:"at"`
	Seq        int64     `json:"seq"`
	Job        *Job      `json:"job,omitempty"`
}
