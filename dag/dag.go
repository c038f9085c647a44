// Package dag implements the dependency bookkeeping and ready-queue
// enumeration engine a composed multi-DAG task scheduler walks: Entry
// (a node wrapping one work item) and DAG (a keyed collection of
// Entries that owns the ready-queue cursor). Cycle detection and the
// enumeration walk use the same DFS-coloring and duplicate-edge
// handling as a plain (non-task) directed acyclic graph.
//
// DAG itself holds no lock: it assumes a single logical caller.
// Package taskgroup is responsible for serializing composition and
// invocation across multiple DAGs.
package dag

import (
	"fmt"

	"golang.org/x/exp/slices"

	"go.lepak.sg/taskgraph/lmap"
)

// Link adds a dependency edge: to depends on from. It is idempotent —
// linking the same pair twice has no additional effect — and rejects
// a link that would introduce a cycle, leaving both entries unmodified
// in that case.
//
// Link operates directly on Entry pointers rather than through a
// single DAG's key lookup, which is what lets it wire entries that
// belong to two different DAG instances together (the mechanism
// taskgroup composition and proxy rewiring both build on).
func Link(from, to *Entry) error {
	if from == to {
		return fmt.Errorf("%w: %s cannot depend on itself", ErrCycleDetected, from.Key)
	}

	for _, existing := range to.dependencies {
		if existing == from {
			return nil
		}
	}

	if dependsOn(from, to) {
		return fmt.Errorf("%w: %s already depends on %s", ErrCycleDetected, from.Key, to.Key)
	}

	to.dependencies = append(to.dependencies, from)
	from.dependents = append(from.dependents, to)

	return nil
}

// Unlink removes a previously-added dependency edge. It is a no-op if
// the edge does not exist, which keeps proxy rewiring's "delete this
// edge, add that one" sequence simple to express.
func Unlink(from, to *Entry) error {
	fi := slices.Index(to.dependencies, from)
	if fi == -1 {
		return nil
	}
	to.dependencies = append(to.dependencies[:fi], to.dependencies[fi+1:]...)

	if ti := slices.Index(from.dependents, to); ti != -1 {
		from.dependents = append(from.dependents[:ti], from.dependents[ti+1:]...)
	}

	return nil
}

// dependsOn reports whether x already (transitively) depends on y,
// i.e. whether y appears somewhere in x's dependency chain. Linking
// from=x to=y would close a cycle exactly when this holds. It is a
// single-target reachability probe run at edge-addition time, rather
// than a full-graph topological sort run once at the end.
func dependsOn(x, y *Entry) bool {
	visited := make(map[*Entry]bool)

	var visit func(*Entry) bool
	visit = func(e *Entry) bool {
		if visited[e] {
			return false
		}
		visited[e] = true

		for _, d := range e.dependencies {
			if d == y || visit(d) {
				return true
			}
		}
		return false
	}

	return x == y || visit(x)
}

// DAG is a keyed collection of Entries plus a designated root and a
// ready-queue enumeration cursor. It is not safe for concurrent use;
// package taskgroup serializes all mutation and enumeration through a
// single logical actor.
type DAG struct {
	root    *Entry
	entries map[string]*Entry

	reachable map[*Entry]struct{}
	ready     *lmap.LinkedMap[*Entry, struct{}]
	inFlight  map[*Entry]struct{}
	prepared  bool
}

// New returns a DAG whose sole initial entry is root.
func New(root *Entry) *DAG {
	return &DAG{
		root:    root,
		entries: map[string]*Entry{root.Key: root},
	}
}

// Root returns the DAG's designated root entry.
func (d *DAG) Root() *Entry { return d.root }

// AddEntry registers a new entry under this DAG's key namespace.
// It does not touch dependencies; wire those with AddEdge afterward.
func (d *DAG) AddEntry(e *Entry) error {
	if _, exists := d.entries[e.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, e.Key)
	}
	d.entries[e.Key] = e
	return nil
}

// Entry looks up a registered entry by key.
func (d *DAG) Entry(key string) (*Entry, bool) {
	e, ok := d.entries[key]
	return e, ok
}

// AddEdge makes the entry keyed toKey depend on the entry keyed
// fromKey; both must already be registered with this DAG via
// AddEntry (or be its root). Cross-DAG edges go through Link instead.
func (d *DAG) AddEdge(fromKey, toKey string) error {
	from, ok := d.entries[fromKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, fromKey)
	}
	to, ok := d.entries[toKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, toKey)
	}
	return Link(from, to)
}

// PrepareForEnumeration resets every entry reachable from the root
// (following dependency edges, regardless of which DAG originally
// registered each entry — this is what lets enumeration walk across a
// composed multi-DAG) to NotStarted, recomputes pending dependency
// counts, and seeds the ready queue with the leaves, ordered by
// entry-creation ordinal.
func (d *DAG) PrepareForEnumeration() {
	d.reachable = make(map[*Entry]struct{})
	var leaves []*Entry

	var visit func(e *Entry)
	visit = func(e *Entry) {
		if _, seen := d.reachable[e]; seen {
			return
		}
		d.reachable[e] = struct{}{}

		e.setState(NotStarted)
		e.pendingCount = len(e.dependencies)
		e.failure = nil

		for _, dep := range e.dependencies {
			visit(dep)
		}

		if e.pendingCount == 0 {
			leaves = append(leaves, e)
		}
	}
	visit(d.root)

	slices.SortFunc(leaves, func(a, b *Entry) int {
		switch {
		case a.ordinal < b.ordinal:
			return -1
		case a.ordinal > b.ordinal:
			return 1
		}
		return 0
	})

	d.ready = lmap.New[*Entry, struct{}]()
	for _, e := range leaves {
		e.setState(Ready)
		d.ready.Set(e, struct{}{}, false)
	}
	d.inFlight = make(map[*Entry]struct{})
	d.prepared = true
}

// GetNext dequeues one ready entry and marks it InProgress. ok is
// false when the queue is currently empty, regardless of whether any
// in-flight entry remains — callers distinguish "nothing ready right
// now" from "fully done" via Done.
func (d *DAG) GetNext() (entry *Entry, ok bool) {
	if !d.prepared {
		return nil, false
	}
	e, _, found := d.ready.Head(true)
	if !found {
		return nil, false
	}
	e.setState(InProgress)
	d.inFlight[e] = struct{}{}
	return e, true
}

// Done reports whether enumeration is finished: every entry reachable
// from the root has reached a terminal state (Succeeded or Faulted).
// This is stricter than "nothing left to dispatch right now" — a
// faulted entry permanently strands its dependents at a nonzero
// pending count (see ReportFailure), so those dependents sit forever
// in NotStarted and Done correctly never reports true while they do.
func (d *DAG) Done() bool {
	if !d.prepared {
		return false
	}
	for e := range d.reachable {
		switch e.State() {
		case Succeeded, Faulted:
		default:
			return false
		}
	}
	return true
}

// ReportCompletion marks entry Succeeded and decrements the pending
// count of each of its dependents, moving any that reach zero onto
// the ready queue. entry must currently be InProgress.
func (d *DAG) ReportCompletion(entry *Entry) error {
	if _, ok := d.reachable[entry]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, entry.Key)
	}
	if entry.State() != InProgress {
		return fmt.Errorf("%w: %s is %s, not in progress", ErrInvalidState, entry.Key, entry.State())
	}

	delete(d.inFlight, entry)
	entry.setState(Succeeded)

	for _, dep := range entry.dependents {
		if _, ok := d.reachable[dep]; !ok {
			continue
		}
		dep.pendingCount--
		if dep.pendingCount == 0 {
			dep.setState(Ready)
			d.ready.Set(dep, struct{}{}, false)
		}
	}

	return nil
}

// ReportFailure marks entry Faulted with cause. Its dependents are
// left with a nonzero pending count forever, so they never become
// ready on their own — which is exactly what lets
// TerminateOnHubCompletion keep dispatching independent branches
// without any special-cased bookkeeping: only entries downstream of
// the fault are naturally starved.
func (d *DAG) ReportFailure(entry *Entry, cause error) error {
	if _, ok := d.reachable[entry]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, entry.Key)
	}
	if entry.State() != InProgress {
		return fmt.Errorf("%w: %s is %s, not in progress", ErrInvalidState, entry.Key, entry.State())
	}

	delete(d.inFlight, entry)
	entry.setState(Faulted)
	entry.failure = cause

	return nil
}

// String renders every registered entry and its dependency keys in
// sorted order, for debugging. It only covers entries this DAG itself
// registered via AddEntry/New, not the full cross-DAG closure
// PrepareForEnumeration discovers.
func (d *DAG) String() string {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out string
	for i, k := range keys {
		e := d.entries[k]
		deps := make([]string, len(e.dependencies))
		for j, dep := range e.dependencies {
			deps[j] = dep.Key
		}
		slices.Sort(deps)

		out += fmt.Sprintf("%s [%s] <- %v", e.Key, e.State(), deps)
		if i < len(keys)-1 {
			out += "\n"
		}
	}
	return out
}
