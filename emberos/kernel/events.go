package kernel

import "fmt"

// EventKind classifies a scheduler event.
type EventKind uint8

const (
	EventCreate EventKind = iota + 1
	EventSwitch
	EventBlock
	EventUnblock
	EventWake
	EventDonate
	EventPriority
	EventExit
	EventReap
	EventLoadAvg
)

func (e EventKind) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventSwitch:
		return "switch"
	case EventBlock:
		return "block"
	case EventUnblock:
		return "unblock"
	case EventWake:
		return "wake"
	case EventDonate:
		return "donate"
	case EventPriority:
		return "priority"
	case EventExit:
		return "exit"
	case EventReap:
		return "reap"
	case EventLoadAvg:
		return "load_avg"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Event is one entry of the scheduler trace. Other and Value depend on Kind:
// a switch carries the incoming thread and its priority, a donation the
// receiving thread and the donated priority, an exit the exit code.
type Event struct {
	Tick  uint64
	Kind  EventKind
	TID   TID
	Other TID
	Value int
}

// eventRing is a fixed ring that drops new events while full.
type eventRing struct {
	head    uint64
	tail    uint64
	dropped uint64
	slots   []Event
}

func (r *eventRing) push(ev Event) bool {
	n := uint64(len(r.slots))
	if n == 0 {
		return false
	}
	if r.head-r.tail >= n {
		r.dropped++
		return false
	}
	r.slots[r.head%n] = ev
	r.head++
	return true
}

func (r *eventRing) pop() (Event, bool) {
	if r.tail == r.head {
		return Event{}, false
	}
	ev := r.slots[r.tail%uint64(len(r.slots))]
	r.tail++
	return ev, true
}

func (k *Kernel) record(kind EventKind, tid, other TID, value int) {
	k.events.push(Event{Tick: k.ticks, Kind: kind, TID: tid, Other: other, Value: value})
}

// Events drains buffered events into dst and returns how many were copied.
func (k *Kernel) Events(dst []Event) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for n < len(dst) {
		ev, ok := k.events.pop()
		if !ok {
			break
		}
		dst[n] = ev
		n++
	}
	return n
}

// DroppedEvents returns the number of events lost to a full ring.
func (k *Kernel) DroppedEvents() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.events.dropped
}
