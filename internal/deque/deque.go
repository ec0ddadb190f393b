// Package deque implements a tagged, typed double-ended queue with O(1)
// push/pop at both ends and O(n) tag-based removal/sort, optionally
// serialized for concurrent producers.
package deque

import (
	"sort"
	"sync"

	"github.com/Userfrom1995/pgagroal/internal/value"
)

type node struct {
	tag        string
	hasTag     bool
	value      value.Value
	prev, next *node
}

// Deque is a doubly linked list of tagged values. The zero value is not
// usable; construct with New.
type Deque struct {
	threadSafe bool
	mu         sync.Mutex
	head, tail *node
	size       int
}

// New constructs an empty deque. When threadSafe is true every mutator
// serializes on an internal mutex; iterators never take the lock, so
// callers must avoid concurrent mutation while iterating, per the
// component's stated concurrency contract.
func New(threadSafe bool) *Deque {
	return &Deque{threadSafe: threadSafe}
}

func (d *Deque) lock() {
	if d.threadSafe {
		d.mu.Lock()
	}
}

func (d *Deque) unlock() {
	if d.threadSafe {
		d.mu.Unlock()
	}
}

// Size returns the current node count.
func (d *Deque) Size() int {
	if d == nil {
		return 0
	}
	d.lock()
	defer d.unlock()
	return d.size
}

// Add pushes a new tagged value onto the tail.
func (d *Deque) Add(tag string, hasTag bool, raw any, typ value.Type) error {
	v, err := value.New(typ, raw)
	if err != nil {
		return err
	}
	d.pushTail(&node{tag: tag, hasTag: hasTag, value: v})
	return nil
}

// AddWithConfig pushes a value carrying a custom destroyer/stringifier.
func (d *Deque) AddWithConfig(tag string, hasTag bool, data any, cfg *value.Config) {
	d.pushTail(&node{tag: tag, hasTag: hasTag, value: value.NewWithConfig(data, cfg)})
}

func (d *Deque) pushTail(n *node) {
	d.lock()
	defer d.unlock()
	if d.tail == nil {
		d.head, d.tail = n, n
	} else {
		n.prev = d.tail
		d.tail.next = n
		d.tail = n
	}
	d.size++
}

// Poll removes and returns the head value, transferring ownership to the
// caller; returns ok=false on an empty deque.
func (d *Deque) Poll() (value.Value, string, bool, bool) {
	d.lock()
	defer d.unlock()
	if d.head == nil {
		return value.Value{}, "", false, false
	}
	n := d.head
	d.head = n.next
	if d.head != nil {
		d.head.prev = nil
	} else {
		d.tail = nil
	}
	d.size--
	return n.value, n.tag, n.hasTag, true
}

// PollLast is Poll from the tail end.
func (d *Deque) PollLast() (value.Value, string, bool, bool) {
	d.lock()
	defer d.unlock()
	if d.tail == nil {
		return value.Value{}, "", false, false
	}
	n := d.tail
	d.tail = n.prev
	if d.tail != nil {
		d.tail.next = nil
	} else {
		d.head = nil
	}
	d.size--
	return n.value, n.tag, n.hasTag, true
}

// Peek inspects the head value without mutation.
func (d *Deque) Peek() (value.Value, string, bool, bool) {
	d.lock()
	defer d.unlock()
	if d.head == nil {
		return value.Value{}, "", false, false
	}
	return d.head.value, d.head.tag, d.head.hasTag, true
}

// PeekLast inspects the tail value without mutation.
func (d *Deque) PeekLast() (value.Value, string, bool, bool) {
	d.lock()
	defer d.unlock()
	if d.tail == nil {
		return value.Value{}, "", false, false
	}
	return d.tail.value, d.tail.tag, d.tail.hasTag, true
}

// Get returns the value of the first entry whose tag equals tag.
func (d *Deque) Get(tag string) (value.Value, bool) {
	d.lock()
	defer d.unlock()
	for n := d.head; n != nil; n = n.next {
		if n.hasTag && n.tag == tag {
			return n.value, true
		}
	}
	return value.Value{}, false
}

// Remove deletes every entry whose tag equals tag, returning the count
// removed. A call with no tag match, a nil deque, or an untagged query
// all return 0.
func (d *Deque) Remove(tag string) int {
	if d == nil {
		return 0
	}
	d.lock()
	defer d.unlock()
	var removed int
	for n := d.head; n != nil; {
		next := n.next
		if n.hasTag && n.tag == tag {
			d.unlink(n)
			n.value.Destroy()
			removed++
		}
		n = next
	}
	return removed
}

func (d *Deque) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	n.prev, n.next = nil, nil
	d.size--
}

// Clear drops all entries, releasing their values.
func (d *Deque) Clear() {
	d.lock()
	defer d.unlock()
	for n := d.head; n != nil; n = n.next {
		n.value.Destroy()
	}
	d.head, d.tail = nil, nil
	d.size = 0
}

// Sort stably reorders entries by ascending tag, lexicographically.
// Untagged entries sort before all tagged entries and keep their
// relative order amongst themselves.
func (d *Deque) Sort() {
	d.lock()
	defer d.unlock()
	nodes := make([]*node, 0, d.size)
	for n := d.head; n != nil; n = n.next {
		nodes = append(nodes, n)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.hasTag != b.hasTag {
			return !a.hasTag
		}
		return a.tag < b.tag
	})
	d.head, d.tail = nil, nil
	for _, n := range nodes {
		n.prev, n.next = nil, nil
		if d.tail == nil {
			d.head, d.tail = n, n
		} else {
			n.prev = d.tail
			d.tail.next = n
			d.tail = n
		}
	}
}
