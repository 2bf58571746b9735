package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is the persisted dossier. Status is mutated only through the workflow
// engine; Version is the optimistic lock counter bumped on every accepted
// write and doubles as the authoritative event sequence.
type Job struct {
	ID          uuid.UUID `gorm:"primaryKey"`
	ClientName  string    `gorm:"not null"`
	MachineType string    `gorm:"not null;index"`
	Status      string    `gorm:"not null;index"`
	StatusKnown bool      `gorm:"not null"`
	Quantity    int       `gorm:"not null"`
	Version     int64     `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	History     []Transition `gorm:"foreignKey:JobID;references:ID;constraint:OnDelete:CASCADE;"`
}

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// Transition is one append-only history entry. Seq is unique per job and
// monotonically increasing; entries are never edited or removed.
type Transition struct {
	ID         uuid.UUID `gorm:"primaryKey"`
	JobID      uuid.UUID `gorm:"not null;uniqueIndex:transitions_job_seq"`
	Seq        int64     `gorm:"not null;uniqueIndex:transitions_job_seq"`
	FromStatus string    `gorm:"not null"`
	ToStatus   string    `gorm:"not null"`
	ActorRole  string    `gorm:"not null"`
	ActorID    string    `gorm:"not null"`
	Comment    *string
	At         time.Time
}

// JobStats aggregates per-status job counts for the metrics collector.
type JobStats struct {
	Total    int
	ByStatus map[string]int
}
