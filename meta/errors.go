package meta

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for a zero id or an id without a row.
	ErrNotFound = errors.New("meta: not found")
	// ErrInvalidFields is returned when a write is missing its object id or key.
	ErrInvalidFields = errors.New("meta: invalid fields")
)

// StorageError adds the object type and operation to a storage failure.
type StorageError struct {
	ObjectType string
	Op         string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("meta: %s %s: %v", e.Op, e.ObjectType, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
