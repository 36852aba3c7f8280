package workload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"ember/emberos/kernel"
)

func TestParseResolvesConstants(t *testing.T) {
	sc, err := Parse([]byte(`
semaphore "go" { value = 2 }
thread "main" {
  priority = PRI_MAX
  step "set_nice" { value = NICE_MIN }
  step "create" { thread = "w" }
}
thread "w" {
  step "down" { semaphore = "go" }
}
`), "inline.hcl")
	require.NoError(t, err)

	main, ok := sc.Thread("main")
	require.True(t, ok)
	assert.Equal(t, kernel.PriMax, main.priority())
	assert.Equal(t, kernel.NiceMin, main.Steps[0].Value)

	w, _ := sc.Thread("w")
	assert.Nil(t, w.Priority)
	assert.Equal(t, kernel.PriDefault, w.priority())
	assert.Equal(t, 2, sc.Semaphores[0].Value)
}

func TestParseRejectsBadScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"no main", `thread "x" {}`, ErrNoMain},
		{"duplicate thread", `
thread "main" {}
thread "main" {}`, ErrDuplicate},
		{"unknown lock", `
thread "main" {
  step "acquire" { lock = "nope" }
}`, ErrUnknownLock},
		{"unknown thread", `
thread "main" {
  step "wait" { thread = "ghost" }
}`, ErrUnknownThread},
		{"unknown semaphore", `
thread "main" {
  step "up" { semaphore = "s" }
}`, ErrUnknownSemaphore},
		{"bad report", `
thread "main" {
  step "report" { what = "mood" }
}`, ErrBadReport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), tc.name+".hcl")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseReportsHCLErrors(t *testing.T) {
	_, err := Parse([]byte(`thread "main" {`), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse workload broken.hcl")

	_, err = Parse([]byte(`thread "main" { colour = "red" }`), "extra.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode workload extra.hcl")
}

func TestUnknownOpsPassValidation(t *testing.T) {
	_, err := Parse([]byte(`
thread "main" {
  step "teleport" {}
}`), "odd.hcl")
	assert.NoError(t, err)
}

func TestLoadThroughAFS(t *testing.T) {
	sc, err := Load(context.Background(), afs.New(), "testdata/donate.hcl")
	require.NoError(t, err)
	assert.Len(t, sc.Threads, 2)
	assert.Len(t, sc.Locks, 1)

	_, err = Load(context.Background(), afs.New(), "testdata/missing.hcl")
	assert.Error(t, err)
}
