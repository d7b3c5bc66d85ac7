package metatype

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTypeName is matched by every *InvalidTypeNameError.
	ErrInvalidTypeName = errors.New("metatype: invalid type name")
	// ErrInvalidOptions reports a table or column identifier that cannot be used in SQL.
	ErrInvalidOptions = errors.New("metatype: invalid options")
	// ErrUnknownType is returned when an operation names an unregistered type.
	ErrUnknownType = errors.New("metatype: unknown type")
)

// InvalidTypeNameError describes why a type name was rejected.
type InvalidTypeNameError struct {
	Name   string
	Reason string
}

func (e *InvalidTypeNameError) Error() string {
	return fmt.Sprintf("metatype: invalid type name %q: %s", e.Name, e.Reason)
}

func (e *InvalidTypeNameError) Is(target error) bool {
	return target == ErrInvalidTypeName
}

// UnknownTypeError wraps ErrUnknownType with the requested name.
func UnknownTypeError(objectType string) error {
	return fmt.Errorf("%w: %q", ErrUnknownType, objectType)
}
