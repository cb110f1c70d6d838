package statekeeper

import "github.com/gammazero/deque"

// substreamQueues keeps one FIFO of checkpoint IDs per ref, oldest first.
// The tail of every queue is the open ID. order remembers registration so
// flush scans are deterministic.
type substreamQueues struct {
	order []SubstreamRef
	byRef map[SubstreamRef]*deque.Deque[CheckpointID]
}

func newSubstreamQueues() *substreamQueues {
	return &substreamQueues{
		byRef: make(map[SubstreamRef]*deque.Deque[CheckpointID]),
	}
}

func (q *substreamQueues) get(ref SubstreamRef) (*deque.Deque[CheckpointID], bool) {
	d, ok := q.byRef[ref]
	return d, ok
}

// add creates an empty queue for ref. The caller opens the first ID.
func (q *substreamQueues) add(ref SubstreamRef) *deque.Deque[CheckpointID] {
	d := deque.New[CheckpointID]()
	q.byRef[ref] = d
	q.order = append(q.order, ref)
	return d
}

// ids returns every queued ID across all queues.
func (q *substreamQueues) ids() []CheckpointID {
	var out []CheckpointID
	for _, ref := range q.order {
		d := q.byRef[ref]
		for i := 0; i < d.Len(); i++ {
			out = append(out, d.At(i))
		}
	}
	return out
}

// reset drops every queue and leaves a single one for ref holding id.
func (q *substreamQueues) reset(ref SubstreamRef, id CheckpointID) {
	q.order = q.order[:0]
	clear(q.byRef)
	q.add(ref).PushBack(id)
}

func (q *substreamQueues) len() int {
	return len(q.order)
}

// each visits queues in registration order.
func (q *substreamQueues) each(fn func(ref SubstreamRef, d *deque.Deque[CheckpointID])) {
	for _, ref := range q.order {
		fn(ref, q.byRef[ref])
	}
}
