package storage

import "errors"

// ErrResponseAlreadySet is returned when filling a turn that already has a response.
var ErrResponseAlreadySet = errors.New("turn response already set")

// NotFoundError is returned when a key or turn doesn't exist in the store.
type NotFoundError struct {
	// Resource is the kind of record that was looked up ("key" or "turn").
	Resource string

	// ID identifies the record.
	ID string
}

func (e NotFoundError) Error() string {
	resource := e.Resource
	if resource == "" {
		resource = "record"
	}

	if e.ID == "" {
		return resource + " not found"
	}

	return resource + " not found: " + e.ID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
