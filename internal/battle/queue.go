package battle

// Queue is the double-ended effect queue. Reactions are pushed to the front
// so they resolve before anything already waiting; cascades from completed
// work are pushed to the back.
type Queue struct {
	buf   []QueuedEffect
	head  int
	count int
}

// Len returns the number of queued effects.
func (q *Queue) Len() int { return q.count }

// PushBack appends effects in order.
func (q *Queue) PushBack(items ...QueuedEffect) {
	q.grow(len(items))
	for _, item := range items {
		q.buf[(q.head+q.count)%len(q.buf)] = item
		q.count++
	}
}

// PushFront prepends effects as one batch. The batch keeps its order: after
// PushFront(a, b) the queue starts with a, b.
func (q *Queue) PushFront(items ...QueuedEffect) {
	q.grow(len(items))
	for i := len(items) - 1; i >= 0; i-- {
		q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
		q.buf[q.head] = items[i]
		q.count++
	}
}

// PopFront removes and returns the first effect.
func (q *Queue) PopFront() (QueuedEffect, bool) {
	if q.count == 0 {
		return QueuedEffect{}, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = QueuedEffect{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return item, true
}

// Items returns the queued effects in drain order.
func (q *Queue) Items() []QueuedEffect {
	out := make([]QueuedEffect, q.count)
	for i := range q.count {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Clear drops every queued effect.
func (q *Queue) Clear() {
	q.buf = nil
	q.head = 0
	q.count = 0
}

func (q *Queue) grow(n int) {
	if q.count+n <= len(q.buf) {
		return
	}
	size := max(2*len(q.buf), 16)
	for size < q.count+n {
		size *= 2
	}
	buf := make([]QueuedEffect, size)
	for i := range q.count {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}
