package kernel

import (
	"fmt"

	"ember/emberos/fixed"
)

// TID identifies a thread. TIDs are positive and never reused.
type TID int32

// TIDError is returned in place of a TID when creation fails.
const TIDError TID = -1

// Status is a thread's scheduling state.
type Status uint8

const (
	StatusRunning Status = iota
	StatusReady
	StatusBlocked
	StatusDying
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusReady:
		return "ready"
	case StatusBlocked:
		return "blocked"
	case StatusDying:
		return "dying"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Thread is a kernel thread. Fields are guarded by the kernel lock unless
// noted otherwise.
type Thread struct {
	k *Kernel

	tid    TID
	name   string
	status Status

	// priority is the effective priority, originPriority the one set
	// explicitly. They differ only while the thread receives a donation.
	priority       int
	originPriority int
	locks          []*Lock
	waitingLock    *Lock

	nice      int
	recentCPU fixed.Fixed

	wakeTick uint64
	burst    int

	queue queueKind
	seq   uint64

	wake chan struct{}
	irq  chan struct{}

	entry func(*Context)

	pageDir   PageDir
	parent    TID
	children  []*child
	self      *child
	handshake *Semaphore

	// Owned by the thread itself.
	exitCode int
	files    *FileTable
}

func (k *Kernel) newThread(name string, priority int) *Thread {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	priority = clamp(priority, PriMin, PriMax)
	t := &Thread{
		k:              k,
		tid:            k.nextTID,
		name:           name,
		status:         StatusBlocked,
		priority:       priority,
		originPriority: priority,
		nice:           NiceDefault,
		wake:           make(chan struct{}, 1),
		irq:            make(chan struct{}, 1),
		exitCode:       ExitKilled,
		files:          newFileTable(),
	}
	t.handshake = k.NewSemaphore("handshake", 0)
	k.nextTID++
	return t
}

// TID returns the thread id.
func (t *Thread) TID() TID { return t.tid }

// Name returns the thread name, truncated to 15 bytes.
func (t *Thread) Name() string { return t.name }

// PageDir returns the thread's address space, nil for kernel-only threads.
func (t *Thread) PageDir() PageDir { return t.pageDir }

// Files returns the thread's descriptor table. Only the thread itself may
// use it.
func (t *Thread) Files() *FileTable { return t.files }

func (t *Thread) String() string { return fmt.Sprintf("%s#%d", t.name, t.tid) }

// ThreadInfo is a point-in-time view of a thread.
type ThreadInfo struct {
	TID          TID
	Name         string
	Status       Status
	Priority     int
	BasePriority int
	Nice         int
	RecentCPU    int
	Parent       TID
	WakeTick     uint64
	WaitingOn    string
	Holding      []string
	User         bool
}

func (t *Thread) info() ThreadInfo {
	in := ThreadInfo{
		TID:          t.tid,
		Name:         t.name,
		Status:       t.status,
		Priority:     t.priority,
		BasePriority: t.originPriority,
		Nice:         t.nice,
		RecentCPU:    t.recentCPU.Scaled(),
		Parent:       t.parent,
		User:         t.pageDir != nil,
	}
	if t.queue == queueSleep {
		in.WakeTick = t.wakeTick
	}
	if t.waitingLock != nil {
		in.WaitingOn = t.waitingLock.name
	}
	for _, l := range t.locks {
		in.Holding = append(in.Holding, l.name)
	}
	return in
}
