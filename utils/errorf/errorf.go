// Package errorf provides short constructors for formatted errors, mirroring
// the teacher's errorf.E/errorf.W call sites.
package errorf

import "fmt"

// E creates a new formatted error.
func E(format string, args ...any) error { return fmt.Errorf(format, args...) }

// W wraps/creates a formatted warning-grade error (same shape as E; kept
// distinct so call sites can signal intent).
func W(format string, args ...any) error { return fmt.Errorf(format, args...) }
