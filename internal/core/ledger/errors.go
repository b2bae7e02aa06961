package ledger

import "errors"

var (
	ErrInvalidEmployeeID = errors.New("ledger: invalid employee id")
	ErrInvalidGallons    = errors.New("ledger: invalid gallons")
	ErrInvalidRemaining  = errors.New("ledger: invalid remaining quota")
	ErrEmployeeNotFound  = errors.New("ledger: employee not found")
)
