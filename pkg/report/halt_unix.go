//go:build !kernel

package report

import (
	"fmt"
	"os"
)

// Halting is the default Reporter outside kernel builds: print the
// banner to stderr and panic, matching TeslaAssertionFailMessage's
// fprintf-then-TeslaPanic (assert(false)) sequence exactly.
type Halting struct{}

func (Halting) Report(v Violation) {
	fmt.Fprintln(os.Stderr, Banner(v))
	os.Stderr.Sync()
	panic("tesla: assertion failed")
}
