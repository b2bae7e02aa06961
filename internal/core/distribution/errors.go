package distribution

import "errors"

var (
	ErrInvalidExternalID = errors.New("distribution: invalid employee id")
	ErrInvalidGallons    = errors.New("distribution: invalid gallons")
)

// Field names used in validation errors.
const (
	FieldExternalID = "employee_id"
	FieldGallons    = "gallons"
)
