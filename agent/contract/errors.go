package contract

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("slot already reserved")
	ErrUpstreamUnavailable = errors.New("upstream collaborator unavailable")
	ErrNotFound            = errors.New("record not found")
	ErrSchemaViolation     = errors.New("extractor response violates schema")
)
