package store

import "errors"

var (
	ErrNotFound = errors.New("claim result not found")
)
