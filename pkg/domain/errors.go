package domain

import "fmt"

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ErrDuplicate is returned when a create collides with an existing record.
type ErrDuplicate struct {
	Entity EntityType
	ID     string
}

func (e ErrDuplicate) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.ID)
}
