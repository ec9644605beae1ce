package semdex

import "github.com/kailas-cloud/semdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound         = domain.ErrNotFound
	ErrAlreadyExists    = domain.ErrAlreadyExists
	ErrDuplicateContent = domain.ErrDuplicateContent
	ErrInvalidSchema    = domain.ErrInvalidSchema
	ErrValidation       = domain.ErrValidation
	ErrNormalization    = domain.ErrNormalization
	ErrQuery            = domain.ErrQuery
)

// Typed errors carry details; match them with errors.As().
type (
	SchemaError        = domain.SchemaError
	NormalizationError = domain.NormalizationError
	QueryError         = domain.QueryError
	ValidationError    = domain.ValidationError
)
