package core

import "time"

// Collection names
const (
	CollectionGroups = "groups"
	CollectionUsers  = "users"
	CollectionTTPs   = "ttps"
)

// Search defaults
const (
	// DefaultSearchPage is the page returned when the request omits one
	DefaultSearchPage = 1
	// DefaultSearchRange is the page size returned when the request omits one
	DefaultSearchRange = 50
	// MaxSearchRange caps the page size regardless of what the client asks for
	MaxSearchRange = 1000
	// MaxSearchPage bounds the page number so the skip offset stays in range
	MaxSearchPage = 1_000_000
)

// Timeouts for single database round-trips issued by handlers
const (
	DBReadTimeout   = 5 * time.Second
	DBWriteTimeout  = 5 * time.Second
	DBHealthTimeout = 3 * time.Second
)

// MaxErrorMessageLength bounds error messages sent back to clients
const MaxErrorMessageLength = 256
