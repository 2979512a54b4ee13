package core

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProtocolTaken indicates a close-time protocol candidate collided
	// with an already assigned protocol. Callers retry with a new candidate.
	ErrProtocolTaken = errors.New("protocol already taken")

	// ErrPendingVariableSet indicates a bot flow is already awaiting input on
	// the ticket. The pending-variable slot is single-valued.
	ErrPendingVariableSet = errors.New("pending variable already set")
)
