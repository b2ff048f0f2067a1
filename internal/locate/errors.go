package locate

import (
	"fmt"
	"strings"
)

// NotFoundError indicates no enumerated port carried the expected VID/PID.
type NotFoundError struct {
	VID string
	PID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("locate: no serial device with id %s:%s (is it plugged in?)", e.VID, e.PID)
}

// AmbiguousError indicates more than one port matched under MatchFail.
// Paths lists every candidate so the user can pin one explicitly.
type AmbiguousError struct {
	VID   string
	PID   string
	Paths []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("locate: %d devices with id %s:%s: %s",
		len(e.Paths), e.VID, e.PID, strings.Join(e.Paths, ", "))
}
