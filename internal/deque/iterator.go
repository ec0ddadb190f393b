package deque

import "github.com/Userfrom1995/pgagroal/internal/value"

// Iterator walks a Deque head-to-tail. It does not take the deque's lock
// (matching the documented concurrency contract); callers must avoid
// concurrent mutation of the underlying deque from another goroutine
// while iterating.
type Iterator struct {
	d      *Deque
	cur    *node
	next   *node
	hasCur bool
}

// Iterator constructs an iterator positioned before the first entry, or
// returns an error for a nil deque.
func (d *Deque) Iterator() (*Iterator, error) {
	if d == nil {
		return nil, ErrNilDeque
	}
	return &Iterator{d: d, next: d.head}, nil
}

// HasNext reports whether a further call to Next will yield an entry.
func (it *Iterator) HasNext() bool {
	return it.next != nil
}

// Next advances to and returns the next (tag, value).
func (it *Iterator) Next() (value.Value, string, bool, bool) {
	if it.next == nil {
		it.hasCur = false
		return value.Value{}, "", false, false
	}
	it.cur = it.next
	it.next = it.next.next
	it.hasCur = true
	return it.cur.value, it.cur.tag, it.cur.hasTag, true
}

// Remove deletes the entry the last Next call returned, in O(1), without
// disturbing the iterator's position. A second call with nothing new
// consumed is a no-op.
func (it *Iterator) Remove() {
	if !it.hasCur {
		return
	}
	it.d.unlink(it.cur)
	it.cur.value.Destroy()
	it.hasCur = false
}

// Destroy releases iterator-owned state.
func (it *Iterator) Destroy() {
	it.d = nil
	it.cur, it.next = nil, nil
}
