package repository

import "errors"

// ErrNotFound is returned when a row is missing or not owned by the caller
var ErrNotFound = errors.New("record not found")
