package deque

import "errors"

// ErrNilDeque is returned when an iterator is requested over a nil deque.
var ErrNilDeque = errors.New("deque: deque is nil")
