package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ateliercolor/presstrack/internal/status"
)

const maxClientNameLength = 200

func clientNameValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	trimmed := strings.TrimSpace(val)
	return trimmed != "" && len(trimmed) <= maxClientNameLength
}

// initialStatusValidator accepts an empty status or anything that classifies
// to DRAFT or IN_PROGRESS, canonical codes and raw producer text alike.
func initialStatusValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	if strings.TrimSpace(val) == "" {
		return true
	}

	resolved, ok := status.Parse(val)
	if !ok {
		resolved, ok = status.Normalize(val)
	}
	if !ok {
		return false
	}
	return resolved == status.Draft || resolved == status.InProgress
}
