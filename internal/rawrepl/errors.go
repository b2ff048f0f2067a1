package rawrepl

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutError indicates that an expected sentinel never arrived within the
// bounded window (including the single retry window). The device is either
// wedged, rebooting, or speaking a different protocol.
type TimeoutError struct {
	Op      string
	Waiting string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rawrepl: %s: no %q within %s", e.Op, e.Waiting, e.Timeout)
}

// ExecError indicates the device reported a runtime fault in a submitted
// statement. Trace carries the device-provided exception text verbatim.
type ExecError struct {
	Output string
	Trace  string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("rawrepl: device exception: %s", strings.TrimSpace(e.Trace))
}
