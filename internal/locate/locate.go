// Package locate discovers the badge's USB-serial port by vendor/product ID.
package locate

import (
	"sort"
	"strings"
)

// Candidate is one enumerated serial port descriptor.
// VID and PID are lower-case hex without a 0x prefix; empty for ports that
// are not USB-attached.
type Candidate struct {
	Path string
	VID  string
	PID  string
}

// PortLister is the exact enumeration contract the finder uses.
type PortLister interface {
	List() ([]Candidate, error)
}

// MatchPolicy decides what happens when more than one port matches.
type MatchPolicy string

const (
	// MatchFail rejects ambiguity: deterministic, right for scripts.
	MatchFail MatchPolicy = "fail"

	// MatchFirst picks the lexicographically first matching path. The
	// caller should warn about the ports it skipped.
	MatchFirst MatchPolicy = "first"
)

// Identity is the resolved device, immutable once returned.
type Identity struct {
	Path string
	VID  string
	PID  string
}

// Finder scans for a single device with a known VID/PID pair.
type Finder struct {
	vid    string
	pid    string
	policy MatchPolicy
	lister PortLister
}

// New creates a finder. VID and PID are hex strings, case-insensitive.
func New(vid, pid string, policy MatchPolicy, lister PortLister) *Finder {
	return &Finder{
		vid:    strings.ToLower(vid),
		pid:    strings.ToLower(pid),
		policy: policy,
		lister: lister,
	}
}

// Find resolves exactly one device.
// Zero matches yield *NotFoundError. Multiple matches yield *AmbiguousError
// under MatchFail, or the first path (sorted) plus the skipped ones under
// MatchFirst. Enumeration has no side effects.
func (f *Finder) Find() (Identity, []string, error) {
	ports, err := f.lister.List()
	if err != nil {
		return Identity{}, nil, err
	}

	var matches []Candidate
	for _, p := range ports {
		if strings.ToLower(p.VID) == f.vid && strings.ToLower(p.PID) == f.pid {
			matches = append(matches, p)
		}
	}

	switch {
	case len(matches) == 0:
		return Identity{}, nil, &NotFoundError{VID: f.vid, PID: f.pid}

	case len(matches) == 1:
		m := matches[0]
		return Identity{Path: m.Path, VID: m.VID, PID: m.PID}, nil, nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, m.Path)
	}

	if f.policy == MatchFirst {
		m := matches[0]
		return Identity{Path: m.Path, VID: m.VID, PID: m.PID}, paths[1:], nil
	}
	return Identity{}, nil, &AmbiguousError{VID: f.vid, PID: f.pid, Paths: paths}
}
