package rawrepl

import (
	"bytes"
	"errors"
	"io"
	"time"
)

// Port is the exact serial contract the session drives.
// Reads are expected to block for the transport's own short poll interval
// and return ErrPortIdle when that interval expires with no data; the
// session's sentinel waits layer their deadlines on top.
type Port interface {
	io.ReadWriter
}

// ErrPortIdle is returned by a Port read that expired without data.
// Transport adapters map their native timeout error onto it.
var ErrPortIdle = errors.New("rawrepl: port idle")

// State describes the interpreter as far as the session can know it.
// Transitions are driven only by control bytes out and sentinels in:
//
// Running     -> Interrupted  (interrupt bytes)
// Interrupted -> RawMode      (enter-raw byte + banner sentinel)
// RawMode     -> Executing    (statement + execute byte)
// Executing   -> RawMode      (both end-of-output sentinels seen)
// RawMode     -> Running      (exit-raw byte)
// Running     -> Rebooting    (execute byte at the friendly prompt)
type State string

const (
	StateRunning     State = "running"
	StateInterrupted State = "interrupted"
	StateRawMode     State = "raw"
	StateExecuting   State = "executing"
	StateRebooting   State = "rebooting"
)

// Config is the minimal runtime config the session needs.
type Config struct {
	// PromptTimeout bounds the wait for the raw-mode banner. Generous by
	// default: the device may be mid-reboot or running slow init code.
	PromptTimeout time.Duration

	// ExecTimeout bounds each sentinel wait during statement execution.
	ExecTimeout time.Duration

	// WriteSlice caps bytes per port write; the device's input buffering
	// drops data on larger bursts.
	WriteSlice int

	// WriteDelay is the pause between write slices.
	WriteDelay time.Duration

	// InterruptDelay is the spacing between repeated interrupt bytes.
	InterruptDelay time.Duration
}

// DefaultConfig returns timings known to work on CH340-attached badges.
func DefaultConfig() Config {
	return Config{
		PromptTimeout:  3 * time.Second,
		ExecTimeout:    10 * time.Second,
		WriteSlice:     128,
		WriteDelay:     20 * time.Millisecond,
		InterruptDelay: 100 * time.Millisecond,
	}
}

// Session drives one device interpreter over one port.
// Not safe for concurrent use; the whole protocol is strictly sequential.
type Session struct {
	port    Port
	cfg     Config
	state   State
	pending []byte // bytes received past the last consumed sentinel
}

// New creates a session assuming the device is running its application.
func New(port Port, cfg Config) (*Session, error) {
	if port == nil {
		return nil, errors.New("rawrepl: port required")
	}
	if cfg.PromptTimeout <= 0 || cfg.ExecTimeout <= 0 {
		return nil, errors.New("rawrepl: timeouts must be > 0")
	}
	if cfg.WriteSlice <= 0 {
		return nil, errors.New("rawrepl: write slice must be > 0")
	}
	return &Session{port: port, cfg: cfg, state: StateRunning}, nil
}

// State reports the session's view of the interpreter.
func (s *Session) State() State {
	return s.state
}

// Interrupt halts a running application loop. The interrupt byte is sent
// several times: application loops often swallow a single one.
func (s *Session) Interrupt() error {
	for i := 0; i < 5; i++ {
		if _, err := s.port.Write([]byte{ctrlInterrupt}); err != nil {
			return err
		}
		time.Sleep(s.cfg.InterruptDelay)
	}
	s.drain()
	s.state = StateInterrupted
	return nil
}

// Enter interrupts the application and switches the interpreter into raw
// mode, waiting for the banner sentinel. One full retry on timeout; a second
// miss surfaces as *TimeoutError rather than masking a wedged device.
func (s *Session) Enter() error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := s.Interrupt(); err != nil {
			return err
		}
		if _, err := s.port.Write([]byte{ctrlEnterRaw}); err != nil {
			return err
		}
		_, err := s.waitFor([]byte(bannerRawMode), s.cfg.PromptTimeout, "enter raw mode")
		if err == nil {
			s.drain()
			s.state = StateRawMode
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// Exec submits one statement for execution and returns its stdout bytes as a
// string. Device-reported exceptions surface as *ExecError with the device
// text verbatim; a missing sentinel surfaces as *TimeoutError after one
// extra wait window (the statement is never re-sent: it may already have
// run on the device).
func (s *Session) Exec(stmt string) (string, error) {
	if s.state != StateRawMode {
		return "", errors.New("rawrepl: exec outside raw mode")
	}

	if err := s.writeSliced([]byte(stmt)); err != nil {
		return "", err
	}
	if _, err := s.port.Write([]byte{ctrlExecute}); err != nil {
		return "", err
	}
	s.state = StateExecuting

	if _, err := s.waitFor([]byte(ackExecute), s.execWindow(), "statement accept"); err != nil {
		return "", err
	}
	out, err := s.waitFor([]byte{endOfOutput}, s.execWindow(), "end of output")
	if err != nil {
		return "", err
	}
	trace, err := s.waitFor([]byte{endOfOutput}, s.execWindow(), "end of exception")
	if err != nil {
		return "", err
	}

	s.state = StateRawMode
	if len(bytes.TrimSpace(trace)) > 0 {
		return "", &ExecError{Output: string(out), Trace: string(trace)}
	}
	return string(out), nil
}

// Exit leaves raw mode. Nothing is awaited: the device immediately resumes
// its application.
func (s *Session) Exit() error {
	if _, err := s.port.Write([]byte{ctrlExitRaw}); err != nil {
		return err
	}
	s.state = StateRunning
	return nil
}

// SoftReboot leaves raw mode and restarts the interpreter. The device is
// unresponsive until its boot sequence completes; callers own the settle
// delay.
func (s *Session) SoftReboot() error {
	if err := s.Exit(); err != nil {
		return err
	}
	time.Sleep(s.cfg.WriteDelay)
	if _, err := s.port.Write([]byte{ctrlExecute}); err != nil {
		return err
	}
	s.state = StateRebooting
	s.pending = nil
	return nil
}

// ---- wire helpers ----

// execWindow is the per-sentinel wait budget: the configured timeout plus
// one retry window of the same length.
func (s *Session) execWindow() time.Duration {
	return 2 * s.cfg.ExecTimeout
}

// writeSliced writes data in bounded slices with a short pause between them.
func (s *Session) writeSliced(data []byte) error {
	for len(data) > 0 {
		n := s.cfg.WriteSlice
		if n > len(data) {
			n = len(data)
		}
		if _, err := s.port.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if len(data) > 0 && s.cfg.WriteDelay > 0 {
			time.Sleep(s.cfg.WriteDelay)
		}
	}
	return nil
}

// waitFor accumulates port bytes until marker appears, returning everything
// before it and retaining everything after it for the next wait. Expiry of
// the window surfaces as *TimeoutError.
func (s *Session) waitFor(marker []byte, window time.Duration, op string) ([]byte, error) {
	deadline := time.Now().Add(window)
	buf := make([]byte, 256)

	for {
		if i := bytes.Index(s.pending, marker); i >= 0 {
			before := append([]byte(nil), s.pending[:i]...)
			s.pending = append([]byte(nil), s.pending[i+len(marker):]...)
			return before, nil
		}
		if time.Now().After(deadline) {
			return nil, &TimeoutError{Op: op, Waiting: string(marker), Timeout: window}
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			s.pending = append(s.pending, buf[:n]...)
			continue
		}
		if err != nil && !errors.Is(err, ErrPortIdle) {
			return nil, err
		}
	}
}

// drain discards everything the device has already sent.
func (s *Session) drain() {
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		if n == 0 {
			return
		}
		if err != nil && !errors.Is(err, ErrPortIdle) {
			return
		}
	}
}
