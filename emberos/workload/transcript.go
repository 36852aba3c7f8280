package workload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// Transcript is the ordered record of everything a workload did. Lines
// look like "0003 B      acquire L".
type Transcript struct {
	mu    sync.Mutex
	lines []string
}

// MismatchError reports a transcript that differs from its golden copy.
type MismatchError struct {
	Diff string
}

func (e *MismatchError) Error() string {
	return "workload: transcript mismatch\n" + e.Diff
}

// Add appends one line.
func (t *Transcript) Add(tick uint64, thread, text string) {
	t.mu.Lock()
	t.lines = append(t.lines, fmt.Sprintf("%04d %-6s %s", tick, thread, text))
	t.mu.Unlock()
}

// Lines returns a copy of the transcript.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// Len returns the number of lines.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

func (t *Transcript) String() string {
	var b strings.Builder
	for _, line := range t.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Expect compares the transcript with golden and returns a *MismatchError
// carrying a unified diff when they differ. Trailing blank lines and
// carriage returns in golden are ignored.
func (t *Transcript) Expect(golden string) error {
	want := normalize(golden)
	got := t.String()
	if want == got {
		return nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return err
	}
	return &MismatchError{Diff: diff}
}

// ExpectURL loads a golden transcript through afs and compares.
func (t *Transcript) ExpectURL(ctx context.Context, fs afs.Service, URL string) error {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to load golden transcript %s: %w", URL, err)
	}
	return t.Expect(string(data))
}

// Save writes the transcript to URL.
func (t *Transcript) Save(ctx context.Context, fs afs.Service, URL string) error {
	if err := fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader([]byte(t.String()))); err != nil {
		return fmt.Errorf("failed to save transcript to %s: %w", URL, err)
	}
	return nil
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	return s + "\n"
}
