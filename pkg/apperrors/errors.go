package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNoUserProcess = errors.New("mapping only contains automatic processes")
)
