package facade

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClearUnsupported is returned by Clear on facades that have
	// not opted in to full index wipes.
	ErrClearUnsupported = errors.New("clear is not supported by this facade")

	// ErrInvalidPagination is returned when start or rows is out of
	// range. Rows may be AllRows or any non-negative value.
	ErrInvalidPagination = errors.New("invalid pagination")
)

// AlreadyExistsError is returned by Add when one or more records
// already exist by id. IDs names every offending id; the caller
// resolves the conflict by using Update or removing the records.
type AlreadyExistsError struct {
	IDs []string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("records already exist: %s", strings.Join(e.IDs, ", "))
}

// IsAlreadyExists reports whether err is an id collision from Add
func IsAlreadyExists(err error) bool {
	var target *AlreadyExistsError
	return errors.As(err, &target)
}
