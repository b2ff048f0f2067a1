// Package serialport adapts goburrow/serial to the raw-REPL port contract.
// This adapter is transport-only: it owns the handle and the idle-read
// mapping, nothing else.
package serialport

import (
	"errors"
	"time"

	"github.com/goburrow/serial"

	"github.com/edq/badge-flasher/internal/rawrepl"
)

// pollInterval is the blocking budget of one underlying read. Sentinel
// deadlines layer on top of it in the session, so it only needs to be
// short enough to keep those deadlines responsive.
const pollInterval = 100 * time.Millisecond

// Port wraps one exclusively-owned serial handle.
type Port struct {
	inner serial.Port
}

// Open opens the device path at the badge's fixed line parameters (8N1).
func Open(path string, baud int) (*Port, error) {
	if path == "" {
		return nil, errors.New("serialport: device path required")
	}

	inner, err := serial.Open(&serial.Config{
		Address:  path,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  pollInterval,
	})
	if err != nil {
		return nil, err
	}
	return &Port{inner: inner}, nil
}

func (p *Port) Write(b []byte) (int, error) {
	return p.inner.Write(b)
}

// Read maps the transport's idle timeout onto rawrepl.ErrPortIdle so the
// protocol layer never sees a transport-specific error type.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.inner.Read(b)
	if err != nil && errors.Is(err, serial.ErrTimeout) {
		return n, rawrepl.ErrPortIdle
	}
	return n, err
}

func (p *Port) Close() error {
	return p.inner.Close()
}
