package storage

import (
	"fmt"

	"yeti/core"
)

// Storage error constants. Each wraps core.ErrNotFound so callers can test
// with errors.Is(err, core.ErrNotFound) regardless of the record type.
var (
	// ErrGroupNotFound is returned when a group is not found
	ErrGroupNotFound = fmt.Errorf("group %w", core.ErrNotFound)

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = fmt.Errorf("user %w", core.ErrNotFound)

	// ErrTTPNotFound is returned when a TTP is not found
	ErrTTPNotFound = fmt.Errorf("ttp %w", core.ErrNotFound)
)
