// Package projection computes the derived, role-facing fields of a dossier:
// priority, urgency, duration estimate and dashboard category. The fields are
// recomputed on every read and never persisted; the same (job, now) input
// always yields the same result.
package projection

import (
	"math"
	"time"

	"github.com/ateliercolor/presstrack/internal/status"
)

// Priority buckets a job by age.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Category is the dashboard column a job lands in. The mapping from status to
// category is total and shared by every dashboard.
type Category string

const (
	CategoryInPreparation Category = "IN_PREPARATION"
	CategoryToPrint       Category = "TO_PRINT"
	CategoryPrinting      Category = "PRINTING"
	CategoryToDeliver     Category = "TO_DELIVER"
	CategoryDelivering    Category = "DELIVERING"
	CategoryDone          Category = "DONE"

	// CategoryUncategorized holds jobs whose stored status could not be
	// classified. They stay visible but are excluded from role-based columns
	// until a human corrects them.
	CategoryUncategorized Category = "UNCATEGORIZED"
)

// Thresholds are the age rules feeding priority and urgency. The historical
// dashboards disagreed on these values; this is the single authoritative set.
type Thresholds struct {
	HighAgeDays   int
	MediumAgeDays int
	StaleAgeDays  int
}

// DefaultThresholds returns the unified priority and staleness rules.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighAgeDays:   7,
		MediumAgeDays: 3,
		StaleAgeDays:  10,
	}
}

// JobFacts is the raw job data the projector reads. Status may carry an
// unclassified legacy value.
type JobFacts struct {
	Status      status.Status
	MachineType status.MachineType
	Quantity    int
	CreatedAt   time.Time
}

// Derived is the projector output attached to outbound job representations.
type Derived struct {
	Priority                 Priority `json:"priority"`
	IsUrgent                 bool     `json:"isUrgent"`
	EstimatedDurationMinutes int      `json:"estimatedDurationMinutes"`
	DisplayCategory          Category `json:"displayCategory"`
}

// base print time in minutes per machine type; scaled by the square root of
// the quantity for the display estimate.
var baseMinutes = map[status.MachineType]float64{
	status.MachineRoland: 90,
	status.MachineXerox:  45,
	status.MachineOther:  60,
}

var categories = map[status.Status]Category{
	status.Draft:            CategoryInPreparation,
	status.InProgress:       CategoryInPreparation,
	status.ToReview:         CategoryInPreparation,
	status.ReadyForPrint:    CategoryToPrint,
	status.Printing:         CategoryPrinting,
	status.Printed:          CategoryToDeliver,
	status.ReadyForDelivery: CategoryToDeliver,
	status.OutForDelivery:   CategoryDelivering,
	status.Delivered:        CategoryDone,
	status.Completed:        CategoryDone,
}

// Project computes the derived fields for a job at the given instant.
func (t Thresholds) Project(job JobFacts, now time.Time) Derived {
	ageDays := now.Sub(job.CreatedAt).Hours() / 24

	priority := PriorityLow
	switch {
	case ageDays > float64(t.HighAgeDays):
		priority = PriorityHigh
	case ageDays > float64(t.MediumAgeDays):
		priority = PriorityMedium
	}

	urgent := priority == PriorityHigh &&
		(job.Status == status.ToReview || job.Status == status.InProgress)
	if !job.Status.IsTerminal() && ageDays > float64(t.StaleAgeDays) {
		urgent = true
	}

	return Derived{
		Priority:                 priority,
		IsUrgent:                 urgent,
		EstimatedDurationMinutes: estimateDuration(job.MachineType, job.Quantity),
		DisplayCategory:          Categorize(job.Status),
	}
}

// Categorize maps a status to its dashboard column. Unclassified legacy
// statuses fall into the uncategorized bucket.
func Categorize(s status.Status) Category {
	if c, ok := categories[s]; ok {
		return c
	}
	return CategoryUncategorized
}

func estimateDuration(machine status.MachineType, quantity int) int {
	base, ok := baseMinutes[machine]
	if !ok {
		base = baseMinutes[status.MachineOther]
	}
	if quantity < 1 {
		quantity = 1
	}
	return int(math.Round(base * math.Sqrt(float64(quantity))))
}
