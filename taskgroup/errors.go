package taskgroup

import "errors"

var (
	// ErrAlreadyStarted is returned by Driver.Invoke (and so by
	// TaskGroup.InvokeAsync) when the group is already mid-invocation.
	ErrAlreadyStarted = errors.New("taskgroup: invocation already in progress")
	// ErrInvalidState covers every other programmer-error condition,
	// such as mutating the graph under an active invocation.
	ErrInvalidState = errors.New("taskgroup: invalid state")
)
