package mappers

import (
	"strings"

	"github.com/google/uuid"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/status"
	"github.com/ateliercolor/presstrack/internal/store/model"
)

// JobCreateForm is the validated creation request with the initial status
// already resolved to a canonical value.
type JobCreateForm struct {
	ClientName  string
	MachineType status.MachineType
	Quantity    int
	Status      status.Status
}

func JobFormFromApi(resource api.JobCreate, initial status.Status) JobCreateForm {
	machine, ok := status.ParseMachineType(resource.MachineType)
	if !ok {
		machine = status.MachineOther
	}
	return JobCreateForm{
		ClientName:  strings.TrimSpace(resource.ClientName),
		MachineType: machine,
		Quantity:    resource.Quantity,
		Status:      initial,
	}
}

func (f JobCreateForm) ToJob() model.Job {
	return model.Job{
		ID:          uuid.New(),
		ClientName:  f.ClientName,
		MachineType: string(f.MachineType),
		Status:      string(f.Status),
		StatusKnown: true,
		Quantity:    f.Quantity,
		Version:     1,
	}
}
