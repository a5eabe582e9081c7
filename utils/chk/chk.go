// Package chk provides terse error-checking helpers used at call sites
// throughout the codebase: `if err = f(); chk.E(err) { return }`.
package chk

import "nostrium.dev/utils/log"

// E logs err at error level and reports whether it was non-nil.
func E(err error) bool {
	if err != nil {
		log.E.F("%v", err)
		return true
	}
	return false
}

// T logs err at trace level and reports whether it was non-nil. Used where
// the failure is expected/benign and shouldn't clutter error-level output.
func T(err error) bool {
	if err != nil {
		log.T.F("%v", err)
		return true
	}
	return false
}

// D logs err at debug level and reports whether it was non-nil.
func D(err error) bool {
	if err != nil {
		log.D.F("%v", err)
		return true
	}
	return false
}
