package kernel

type queueKind uint8

const (
	queueNone queueKind = iota
	queueReady
	queueSleep
	queueWait
)

func (q queueKind) String() string {
	switch q {
	case queueReady:
		return "ready"
	case queueSleep:
		return "sleep"
	case queueWait:
		return "wait"
	default:
		return "none"
	}
}

// threadQueue keeps threads in arrival order. Selection is by effective
// priority at the time of the pop, so donations that land while a thread is
// queued are honoured without re-sorting. Among equal priorities the earliest
// arrival wins.
type threadQueue struct {
	kind  queueKind
	items []*Thread
}

func (q *threadQueue) len() int { return len(q.items) }

func (q *threadQueue) maxIndex() int {
	best := -1
	for i, t := range q.items {
		if best < 0 || t.priority > q.items[best].priority {
			best = i
		}
	}
	return best
}

func (q *threadQueue) maxPriority() int {
	if i := q.maxIndex(); i >= 0 {
		return q.items[i].priority
	}
	return PriMin - 1
}

func (q *threadQueue) removeAt(i int) *Thread {
	t := q.items[i]
	copy(q.items[i:], q.items[i+1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
	t.queue = queueNone
	return t
}

func (q *threadQueue) popMax() *Thread {
	i := q.maxIndex()
	if i < 0 {
		return nil
	}
	return q.removeAt(i)
}

func (q *threadQueue) remove(t *Thread) bool {
	for i, x := range q.items {
		if x == t {
			q.removeAt(i)
			return true
		}
	}
	return false
}

// enqueue links t at the tail of q. A thread is in at most one queue.
func (k *Kernel) enqueue(q *threadQueue, t *Thread) {
	if t.queue != queueNone {
		k.fatalf("thread %d already linked into the %s queue", t.tid, t.queue)
	}
	t.queue = q.kind
	t.seq = k.nextSeq()
	q.items = append(q.items, t)
}
