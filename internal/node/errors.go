package node

import "errors"

var (
	// ErrInvalidID is returned for identifiers outside the node id grammar.
	ErrInvalidID = errors.New("invalid node id")
	// ErrInvalidConfig is returned when a node lacks mandatory configuration.
	ErrInvalidConfig = errors.New("invalid node configuration")
)
