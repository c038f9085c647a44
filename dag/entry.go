package dag

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"go.lepak.sg/taskgraph/task"
)

// State is an Entry's position in the enumeration lifecycle.
type State uint32

const (
	NotStarted State = iota
	Ready
	InProgress
	Succeeded
	Faulted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Ready:
		return "ready"
	case InProgress:
		return "in progress"
	case Succeeded:
		return "succeeded"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// entryOrdinalSeq assigns every Entry a monotonically increasing
// ordinal at creation time. Leaves are walked in ordinal order when
// PrepareForEnumeration seeds the ready queue, which approximates
// creation order for a multi-DAG composition (entries created across
// several separately built DAGs): no single DAG's local construction
// order covers entries it never itself added.
var entryOrdinalSeq uint64

// Entry is one node in a DAG: a work item plus its dependency
// bookkeeping and completion state. Entries are shared by pointer
// across DAG instances once linked (see Link/Unlink), so a proxy's
// entry and a real root's entry can reference each other regardless
// of which DAG originally added either one.
type Entry struct {
	Key  string
	Item task.Item

	ordinal uint64

	dependencies []*Entry
	dependents   []*Entry

	pendingCount int
	state        uint32 // atomic, see State

	failure error
}

// NewEntry constructs an Entry wrapping item, with no dependencies or
// dependents yet. Use DAG.AddEntry to register it, and Link (or
// DAG.AddEdge) to wire dependencies.
func NewEntry(key string, item task.Item) *Entry {
	return &Entry{
		Key:     key,
		Item:    item,
		ordinal: atomic.AddUint64(&entryOrdinalSeq, 1),
	}
}

// State reports the entry's current lifecycle state. Safe to call
// concurrently with a running invocation (it's read for debug
// rendering while the driver dispatches work on other goroutines).
func (e *Entry) State() State { return State(atomic.LoadUint32(&e.state)) }

func (e *Entry) setState(s State) { atomic.StoreUint32(&e.state, uint32(s)) }

// Failure returns the cause recorded by the most recent ReportFailure
// call against this entry, or nil if it never faulted.
func (e *Entry) Failure() error { return e.failure }

// Dependencies returns a snapshot of the entries this one waits on.
func (e *Entry) Dependencies() []*Entry { return slices.Clone(e.dependencies) }

// Dependents returns a snapshot of the entries waiting on this one.
func (e *Entry) Dependents() []*Entry { return slices.Clone(e.dependents) }

func (e *Entry) String() string {
	return fmt.Sprintf("%s [%s]", e.Key, e.State())
}
