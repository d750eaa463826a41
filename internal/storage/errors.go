package storage

import "github.com/pkg/errors"

// ErrNotFound is returned by stores when the requested row does not exist
// or is not visible to the caller.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when an insert hits an existing primary key.
var ErrAlreadyExists = errors.New("already exists")
