package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

type ErrInvalidInitialStatus struct {
	error
}

func NewErrInvalidInitialStatus(raw string) *ErrInvalidInitialStatus {
	return &ErrInvalidInitialStatus{fmt.Errorf("a job starts as DRAFT or IN_PROGRESS, got %q", raw)}
}

type ErrCreationForbidden struct {
	error
}

func NewErrCreationForbidden(role string) *ErrCreationForbidden {
	return &ErrCreationForbidden{fmt.Errorf("role %q is not allowed to create jobs", role)}
}
