package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID is a sortable unique identifier used for alerts and weight versions.
type ID string

// NewID generates a new time-ordered identifier.
func NewID() ID {
	return ID(ksuid.New().String())
}

// ParseID validates a string as an ID.
func ParseID(s string) (ID, error) {
	if _, err := ksuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(s), nil
}

func (i ID) String() string {
	return string(i)
}
