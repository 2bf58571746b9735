package workflow

import (
	"fmt"

	"github.com/ateliercolor/presstrack/internal/status"
)

type ErrIllegalTransition struct {
	error
	From status.Status
	To   status.Status
}

func NewErrIllegalTransition(from, to status.Status) *ErrIllegalTransition {
	return &ErrIllegalTransition{
		error: fmt.Errorf("illegal transition from %s to %s", from, to),
		From:  from,
		To:    to,
	}
}

type ErrForbidden struct {
	error
}

func NewErrForbidden(role status.Role, from, to status.Status) *ErrForbidden {
	return &ErrForbidden{fmt.Errorf("role %s is not permitted to transition %s to %s", role, from, to)}
}

type ErrMissingComment struct {
	error
}

func NewErrMissingComment(to status.Status) *ErrMissingComment {
	return &ErrMissingComment{fmt.Errorf("transition to %s requires a non-empty comment", to)}
}

type ErrUnknownStatus struct {
	error
	Raw string
}

func NewErrUnknownStatus(raw string) *ErrUnknownStatus {
	return &ErrUnknownStatus{
		error: fmt.Errorf("unknown status %q", raw),
		Raw:   raw,
	}
}
