package tier

import "errors"

// Tier and mode validation errors.
var (
	ErrUnknownTier = errors.New("unknown tier")
	ErrUnknownMode = errors.New("unknown retrieval mode")
)
