// Package pqueue implements the indexed binary heap behind GC victim
// selection. Items carry their own priority and heap position through the
// Item hooks, so the line manager can remove or re-prioritize a line in
// O(log n) without searching the heap.
package pqueue

import "github.com/pkg/errors"

// ErrOutOfCapacity is returned by Insert when the queue is full. The
// queue never reallocates; callers size it for the worst case up front.
var ErrOutOfCapacity = errors.New("pqueue: out of capacity")

// Item is the contract stored elements satisfy. Position 0 means "not in
// the queue"; live positions start at 1.
type Item interface {
	Priority() uint64
	SetPriority(pri uint64)
	Pos() int
	SetPos(pos int)
}

// CmpFunc reports whether next should sit below curr, i.e. whether the
// two must swap when next is the parent. A min-heap returns next > curr,
// a max-heap the reverse. Policies that treat the queue as an unordered
// bag supply a comparator that always returns false.
type CmpFunc func(next, curr uint64) bool

// Queue is a fixed-capacity binary heap, array-backed and 1-indexed.
type Queue struct {
	d    []Item // d[0] unused
	size int    // index one past the last element, as in the array form
	cmp  CmpFunc
}

// New creates a queue holding at most n items.
func New(n int, cmp CmpFunc) *Queue {
	return &Queue{
		d:    make([]Item, n+1),
		size: 1,
		cmp:  cmp,
	}
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	return q.size - 1
}

// At exposes the backing array for policies that scan linearly
// (Cost-Benefit). Valid indices are [1, Len()].
func (q *Queue) At(i int) Item {
	return q.d[i]
}

func (q *Queue) bubbleUp(i int) {
	moving := q.d[i]
	movingPri := moving.Priority()

	for parent := i / 2; i > 1 && q.cmp(q.d[parent].Priority(), movingPri); parent = i / 2 {
		q.d[i] = q.d[parent]
		q.d[i].SetPos(i)
		i = parent
	}

	q.d[i] = moving
	moving.SetPos(i)
}

// maxChild picks the child to swap toward, or 0 if i is a leaf.
func (q *Queue) maxChild(i int) int {
	child := i * 2
	if child >= q.size {
		return 0
	}
	if child+1 < q.size && q.cmp(q.d[child].Priority(), q.d[child+1].Priority()) {
		child++
	}
	return child
}

func (q *Queue) percolateDown(i int) {
	moving := q.d[i]
	movingPri := moving.Priority()

	for child := q.maxChild(i); child != 0 && q.cmp(movingPri, q.d[child].Priority()); child = q.maxChild(i) {
		q.d[i] = q.d[child]
		q.d[i].SetPos(i)
		i = child
	}

	q.d[i] = moving
	moving.SetPos(i)
}

// Insert places item into the queue.
func (q *Queue) Insert(item Item) error {
	if q.size >= len(q.d) {
		return errors.Wrapf(ErrOutOfCapacity, "size %d", q.Len())
	}

	i := q.size
	q.size++
	q.d[i] = item
	q.bubbleUp(i)
	return nil
}

// Peek returns the root without removing it, or nil when empty.
func (q *Queue) Peek() Item {
	if q.size == 1 {
		return nil
	}
	return q.d[1]
}

// Pop extracts the root, or nil when empty.
func (q *Queue) Pop() Item {
	if q.size == 1 {
		return nil
	}

	head := q.d[1]
	q.size--
	q.d[1] = q.d[q.size]
	q.d[q.size] = nil
	if q.size > 1 {
		q.percolateDown(1)
	}
	return head
}

// Remove takes item out of the middle of the queue using its recorded
// position.
func (q *Queue) Remove(item Item) {
	pos := item.Pos()
	q.size--
	q.d[pos] = q.d[q.size]
	q.d[q.size] = nil
	if pos < q.size {
		if q.cmp(item.Priority(), q.d[pos].Priority()) {
			q.bubbleUp(pos)
		} else {
			q.percolateDown(pos)
		}
	}
}

// ChangePriority re-prioritizes item in place and restores heap order.
func (q *Queue) ChangePriority(item Item, newPri uint64) {
	oldPri := item.Priority()
	item.SetPriority(newPri)
	pos := item.Pos()

	if q.cmp(oldPri, newPri) {
		q.bubbleUp(pos)
	} else {
		q.percolateDown(pos)
	}
}

// IsValid verifies the heap property over the whole tree. Test hook.
func (q *Queue) IsValid() bool {
	return q.subtreeValid(1)
}

func (q *Queue) subtreeValid(pos int) bool {
	left := pos * 2
	if left < q.size {
		if q.cmp(q.d[pos].Priority(), q.d[left].Priority()) {
			return false
		}
		if !q.subtreeValid(left) {
			return false
		}
	}
	right := pos*2 + 1
	if right < q.size {
		if q.cmp(q.d[pos].Priority(), q.d[right].Priority()) {
			return false
		}
		if !q.subtreeValid(right) {
			return false
		}
	}
	return true
}
