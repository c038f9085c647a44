// Package lmap provides an insertion-order preserving map. It backs
// two call sites in this module: the dag ready queue (FIFO pop via
// Head(true)) and task.Context's mutable bag (ordered iteration for
// inspection/debugging).
package lmap

// LinkedMap is a map combined with a linked list. It preserves
// insertion order and therefore iteration order as well.
// LinkedMap is not safe for concurrent use; callers that share one
// across goroutines must serialize access themselves.
type LinkedMap[K comparable, V any] struct {
	m map[K]*entryb[K, V]

	head, tail *entryb[K, V]
}

type entryb[K comparable, V any] struct {
	k K
	v V

	prev, next *entryb[K, V]
}

// New returns a pointer to a new LinkedMap.
func New[K comparable, V any]() *LinkedMap[K, V] {
	return &LinkedMap[K, V]{
		m: make(map[K]*entryb[K, V]),
	}
}

func (l *LinkedMap[K, V]) remove(e *entryb[K, V]) {
	if e == nil {
		panic("nil entry")
	}

	if l.head == nil || l.tail == nil {
		panic("nil head or tail")
	}

	if e.prev != nil {
		e.prev.next = e.next
	} else {
		if l.head != e {
			panic("entry has no previous node but it is not the head")
		}
		l.head = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		if l.tail != e {
			panic("entry has no next node but it is not the tail")
		}
		l.tail = e.prev
	}
}

func (l *LinkedMap[K, V]) push(e *entryb[K, V]) {
	if e == nil {
		panic("nil entry")
	}

	if l.head == nil && l.tail == nil {
		l.head, l.tail = e, e
		return
	}

	e.prev = l.tail
	l.tail.next = e

	e.next = nil
	l.tail = e
}

// Get behaves like the map access `v, ok := l[k]`.
// If bump is true and k is in the map, k is moved to the tail
// of the list, as if it were removed and added back to the map.
func (l *LinkedMap[K, V]) Get(k K, bump bool) (v V, ok bool) {
	e, ok := l.m[k]
	if !ok {
		return
	}

	if bump {
		l.remove(e)
		l.push(e)
	}

	return e.v, true
}

// Set behaves like the map set `l[k] = v`. If bumpOnExist is true
// and k is in the map, k is moved to the tail of the list,
// as if it were removed and added back into the map. Otherwise,
// if k is not in the map, it is appended to the tail of the list.
func (l *LinkedMap[K, V]) Set(k K, v V, bumpOnExist bool) {
	e, exist := l.m[k]
	if exist {
		if e.k != k {
			panic("entry key does not match map key")
		}

		e.v = v
		if bumpOnExist {
			l.remove(e)
			l.push(e)
		}
	} else {
		e = &entryb[K, V]{
			k: k,
			v: v,
		}

		l.m[k] = e

		l.push(e)
	}
}

// ForEach allows ordered iteration over the map as with
// `for k, v := range l {}`. The function f is called for every
// key-value pair in order. If f returns false at any iteration,
// the iteration process is stopped early.
//
// The result of modifying the map while iterating over it is undefined.
func (l *LinkedMap[K, V]) ForEach(f func(k K, v V) bool) {
	if l.head == nil {
		return
	}

	hare := l.head.next

	for e := l.head; e != nil; e = e.next {
		if e == hare {
			// bug in the map, not in the caller
			panic("cycle detected, iteration will not end")
		}

		if !f(e.k, e.v) {
			break
		}

		if hare != nil && hare.next != nil {
			hare = hare.next.next
		} else {
			hare = nil
		}
	}
}

// Len behaves like `len(l)`. This is a constant-time operation.
func (l *LinkedMap[_, _]) Len() int {
	return len(l.m)
}

// Head returns the head element of the linked list. If pop is true,
// the head element is also removed from the map and list.
// If ok is false, no element was found.
func (l *LinkedMap[K, V]) Head(pop bool) (k K, v V, ok bool) {
	if l.head == nil {
		return
	}

	k, v, ok = l.head.k, l.head.v, true

	if pop {
		l.remove(l.head)
		delete(l.m, k)
	}

	return
}
