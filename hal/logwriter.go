package hal

import (
	"bytes"
	"io"
	"sync"
)

// LogWriter adapts l to an io.Writer. Complete lines are forwarded one at a
// time; a trailing partial line is held until its newline arrives.
func LogWriter(l Logger) io.Writer {
	return &logWriter{l: l}
}

type logWriter struct {
	mu      sync.Mutex
	l       Logger
	pending []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.l.WriteLineBytes(bytes.TrimSuffix(w.pending[:i], []byte{'\r'}))
		w.pending = w.pending[i+1:]
	}
	if len(w.pending) == 0 {
		w.pending = nil
	}
	return len(p), nil
}
