// Package idgen produces the boot ids that tag every log record of one
// system instance.
package idgen

import "github.com/google/uuid"

// NewFunc generates boot ids. Tests replace it to get stable output.
var NewFunc = func() string { return uuid.New().String() }

// New returns a fresh boot id.
func New() string { return NewFunc() }
