package application

import "errors"

// ErrInvalidInput marks caller errors; wrap it with the reason.
var ErrInvalidInput = errors.New("invalid input")
