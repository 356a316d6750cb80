package buffer

import "sort"

// priorityQueue keeps pending entries ordered by descending priority
// from head to tail, so draining from the head serves the most urgent
// entries first. Entries of equal priority keep their arrival order
// (stable FIFO), which makes the tie-break deterministic.
type priorityQueue struct {
	items []*bufferEntry
}

func (q *priorityQueue) len() int {
	return len(q.items)
}

// insert places e after every entry of equal or higher priority.
func (q *priorityQueue) insert(e *bufferEntry) {
	i := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].priority < e.priority
	})
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = e
}

// pushFront puts a retried entry at the head, ahead of everything
// already queued, so it is reprocessed before newer arrivals.
func (q *priorityQueue) pushFront(e *bufferEntry) {
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items)
	q.items[0] = e
}

// drainBatch removes and returns up to max entries from the head.
func (q *priorityQueue) drainBatch(max int) []*bufferEntry {
	n := len(q.items)
	if n == 0 {
		return nil
	}
	if n > max {
		n = max
	}
	batch := make([]*bufferEntry, n)
	copy(batch, q.items[:n])
	rest := copy(q.items, q.items[n:])
	for i := rest; i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = q.items[:rest]
	return batch
}

// dropOldestLowest removes the oldest entry of the lowest priority
// class. With uniform priorities this is simply the oldest entry in
// the queue.
func (q *priorityQueue) dropOldestLowest() *bufferEntry {
	n := len(q.items)
	if n == 0 {
		return nil
	}
	lowest := q.items[n-1].priority
	i := sort.Search(n, func(i int) bool {
		return q.items[i].priority <= lowest
	})
	e := q.items[i]
	copy(q.items[i:], q.items[i+1:])
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return e
}

// dropBelow removes and returns every entry with priority below floor.
// They form the queue's tail because of the descending order.
func (q *priorityQueue) dropBelow(floor int) []*bufferEntry {
	i := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].priority < floor
	})
	if i == len(q.items) {
		return nil
	}
	dropped := make([]*bufferEntry, len(q.items)-i)
	copy(dropped, q.items[i:])
	for j := i; j < len(q.items); j++ {
		q.items[j] = nil
	}
	q.items = q.items[:i]
	return dropped
}

// clear removes everything, returning how many entries were discarded.
func (q *priorityQueue) clear() int {
	n := len(q.items)
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
	return n
}
