package dag

import "errors"

// Sentinel errors returned by DAG mutation and enumeration methods.
// Callers should use errors.Is against these, since all of them are
// wrapped with additional context via fmt.Errorf's %w verb.
var (
	ErrCycleDetected = errors.New("dag: cycle detected")
	ErrDuplicateKey  = errors.New("dag: duplicate key")
	ErrUnknownKey    = errors.New("dag: unknown key")
	ErrInvalidState  = errors.New("dag: invalid state")
)
