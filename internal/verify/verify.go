// Package verify confirms persisted key/value state after a reboot by
// generating small read-back statements against the device's preference
// store and comparing the printed results.
package verify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// executor is the exact raw-mode contract the driver uses.
// IMPORTANT: there must be NO other version of this interface anywhere.
type executor interface {
	Exec(stmt string) (string, error)
}

// Kind selects the device-side getter and the comparison rule.
type Kind int

const (
	// KindInt reads an int32 and compares numerically.
	KindInt Kind = iota

	// KindString reads a string and compares exactly.
	KindString

	// KindListCount reads a comma-separated string and compares its
	// non-empty element count numerically.
	KindListCount
)

// Check is one expected value in the persistent store.
// Key is a device-side key expression (a quoted literal or a make_key
// call), not a bare name.
type Check struct {
	Label     string
	Namespace string
	Key       string
	Kind      Kind
	WantInt   int64
	WantStr   string
}

// RawKey quotes a literal key name for use as a key expression.
func RawKey(name string) string {
	return fmt.Sprintf("%q", name)
}

// PrefKey builds a composite-key expression via the device's make_key
// helper.
func PrefKey(prefix, name string) string {
	return fmt.Sprintf("make_key(%q, %q)", prefix, name)
}

// Mismatch is one diverging key, reported with both sides.
type Mismatch struct {
	Label string
	Want  string
	Got   string
}

// FailedError carries every mismatch, never just the first: the caller gets
// a complete diagnostic in one run.
type FailedError struct {
	Mismatches []Mismatch
}

func (e *FailedError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, fmt.Sprintf("%s: want %s, got %s", m.Label, m.Want, m.Got))
	}
	return fmt.Sprintf("verify: %d check(s) failed: %s", len(e.Mismatches), strings.Join(parts, "; "))
}

// Run executes every check and collects all mismatches before failing.
// A protocol fault during any check is fatal immediately: once the channel
// is suspect, further read-backs prove nothing.
func Run(exec executor, checks []Check) error {
	if exec == nil {
		return errors.New("verify: executor required")
	}
	if len(checks) == 0 {
		return errors.New("verify: at least one check required")
	}

	var mismatches []Mismatch

	for _, c := range checks {
		out, err := exec.Exec(readStmt(c))
		if err != nil {
			return fmt.Errorf("verify: %s: %w", c.Label, err)
		}
		got := strings.TrimSpace(out)

		switch c.Kind {
		case KindString:
			if got != c.WantStr {
				mismatches = append(mismatches, Mismatch{
					Label: c.Label,
					Want:  fmt.Sprintf("%q", c.WantStr),
					Got:   fmt.Sprintf("%q", got),
				})
			}

		default:
			n, perr := strconv.ParseInt(got, 10, 64)
			if perr != nil || n != c.WantInt {
				mismatches = append(mismatches, Mismatch{
					Label: c.Label,
					Want:  strconv.FormatInt(c.WantInt, 10),
					Got:   got,
				})
			}
		}
	}

	if len(mismatches) > 0 {
		return &FailedError{Mismatches: mismatches}
	}
	return nil
}

// readStmt generates the read-back statement for one check. The store has
// no native query API; every lookup is a begin/get/end round trip with a
// printed result.
func readStmt(c Check) string {
	var get string
	switch c.Kind {
	case KindString:
		get = fmt.Sprintf("v = prefs.get_string(%s, '')", c.Key)
	case KindListCount:
		get = fmt.Sprintf("v = len([x for x in prefs.get_string(%s, '').split(',') if x])", c.Key)
	default:
		get = fmt.Sprintf("v = prefs.get_int32(%s, -1)", c.Key)
	}

	lines := []string{
		"from cactuscon.prefs import prefs, make_key",
		fmt.Sprintf("prefs.begin(%q, False, context='verify')", c.Namespace),
		get,
		"prefs.end()",
		"print(v)",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}
