package employee

import "errors"

var (
	ErrInvalidID               = errors.New("employee: invalid id")
	ErrInvalidExternalID       = errors.New("employee: invalid external id")
	ErrInvalidName             = errors.New("employee: invalid name")
	ErrInvalidDepartment       = errors.New("employee: invalid department")
	ErrInvalidPosition         = errors.New("employee: invalid position")
	ErrInvalidMonthlyQuota     = errors.New("employee: invalid monthly quota")
	ErrInvalidCurrentQuota     = errors.New("employee: invalid current quota")
	ErrInvalidAmount           = errors.New("employee: invalid amount")
	ErrInvalidPageSize         = errors.New("employee: invalid page size")
	ErrInvalidPageToken        = errors.New("employee: invalid page token")
	ErrInsufficientQuota       = errors.New("employee: insufficient quota")
	ErrEmployeeNotFound        = errors.New("employee: not found")
	ErrExternalIDAlreadyExists = errors.New("employee: external id already exists")
)
