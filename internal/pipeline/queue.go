package pipeline

// DelayQueue holds the pending delays of one origin. It is a dual structure:
// an append-only, time-ordered sequence whose head is the next delay to fire,
// and a path index used to find the pending delay a new event should collapse
// into.
//
// Stacked delays (the move cases and explicit stack outcomes) are appended
// behind the indexed delay; once the indexed delay is gone they are findable
// only by walking the sequence. New events on such a path open a fresh
// indexed delay rather than chaining onto the stacked one.
type DelayQueue struct {
	seq    []*Delay
	byPath map[string]*Delay
	live   int
}

// NewDelayQueue returns an empty queue.
func NewDelayQueue() *DelayQueue {
	return &DelayQueue{byPath: make(map[string]*Delay)}
}

// Len returns the number of live (non-cancelled) delays.
func (q *DelayQueue) Len() int {
	return q.live
}

// Head returns the first live delay without removing it, or nil when the
// queue is empty. Cancelled entries reached at the front are discarded on the
// way; they can never be returned again.
func (q *DelayQueue) Head() *Delay {
	for len(q.seq) > 0 && q.seq[0].Kind == KindNone {
		q.seq = q.seq[1:]
	}
	if len(q.seq) == 0 {
		return nil
	}
	return q.seq[0]
}

// PopHead removes and returns the first live delay, or nil when the queue is
// empty. If the popped delay owned the index entry for its path, the entry is
// cleared.
func (q *DelayQueue) PopHead() *Delay {
	d := q.Head()
	if d == nil {
		return nil
	}
	q.seq = q.seq[1:]
	q.live--
	if q.byPath[d.Path] == d {
		delete(q.byPath, d.Path)
	}
	return d
}

// lookup returns the indexed delay for path, or nil.
func (q *DelayQueue) lookup(path string) *Delay {
	return q.byPath[path]
}

// push appends a fresh delay and indexes it by path.
func (q *DelayQueue) push(d *Delay) {
	q.seq = append(q.seq, d)
	q.byPath[d.Path] = d
	q.live++
}

// stack appends a delay without touching the index. The existing indexed
// delay for the path, if any, keeps its entry.
func (q *DelayQueue) stack(d *Delay) {
	q.seq = append(q.seq, d)
	q.live++
}

// cancel logically removes a delay. The entry stays in the sequence until the
// head scan reaches it.
func (q *DelayQueue) cancel(d *Delay) {
	if d.Kind == KindNone {
		return
	}
	d.Kind = KindNone
	q.live--
	if q.byPath[d.Path] == d {
		delete(q.byPath, d.Path)
	}
}
