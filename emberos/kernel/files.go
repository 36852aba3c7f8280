package kernel

import (
	"io"
	"sort"
)

// firstFD is the lowest descriptor handed out; 0 and 1 are the console.
const firstFD = 2

// FileTable maps descriptors to open files for one thread. It is not safe
// for concurrent use and belongs to the thread that owns it.
type FileTable struct {
	next  int
	files map[int]io.Closer
}

func newFileTable() *FileTable {
	return &FileTable{next: firstFD, files: make(map[int]io.Closer)}
}

// Add installs f and returns its descriptor. Descriptors are not reused.
func (ft *FileTable) Add(f io.Closer) int {
	fd := ft.next
	ft.next++
	ft.files[fd] = f
	return fd
}

// Get returns the file behind fd.
func (ft *FileTable) Get(fd int) (io.Closer, bool) {
	f, ok := ft.files[fd]
	return f, ok
}

// Close closes and removes fd.
func (ft *FileTable) Close(fd int) error {
	f, ok := ft.files[fd]
	if !ok {
		return ErrBadFD
	}
	delete(ft.files, fd)
	return f.Close()
}

// Len returns the number of open descriptors.
func (ft *FileTable) Len() int { return len(ft.files) }

// closeAll closes every descriptor in ascending order.
func (ft *FileTable) closeAll() {
	fds := make([]int, 0, len(ft.files))
	for fd := range ft.files {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	for _, fd := range fds {
		_ = ft.files[fd].Close()
		delete(ft.files, fd)
	}
}
