package session

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/edq/badge-flasher/internal/locate"
	"github.com/edq/badge-flasher/internal/rawrepl"
	"github.com/edq/badge-flasher/internal/transfer"
	"github.com/edq/badge-flasher/internal/verify"
)

// ---- scripted badge ----

// fakeBadge emulates the interpreter end to end: interrupt bytes are
// swallowed, the enter byte yields the banner, executed statements are
// acknowledged with canned read-back outputs, and the execute byte at the
// friendly prompt counts as a reboot.
type fakeBadge struct {
	rx bytes.Buffer

	raw           bool
	stmt          bytes.Buffer
	statements    []string
	verifyOutputs []string
	reboots       int
	closed        bool
}

func (b *fakeBadge) Write(p []byte) (int, error) {
	for _, c := range p {
		switch c {
		case 0x01:
			b.raw = true
			b.rx.WriteString("raw REPL; CTRL-B to exit\r\n>")
		case 0x02:
			b.raw = false
		case 0x04:
			if b.raw {
				stmt := b.stmt.String()
				b.stmt.Reset()
				b.statements = append(b.statements, stmt)

				out := ""
				if strings.Contains(stmt, "print(v)") && len(b.verifyOutputs) > 0 {
					out = b.verifyOutputs[0]
					b.verifyOutputs = b.verifyOutputs[1:]
				}
				b.rx.WriteString("OK")
				b.rx.WriteString(out)
				b.rx.WriteByte(0x04)
				b.rx.WriteByte(0x04)
				b.rx.WriteString(">")
			} else {
				b.reboots++
			}
		case 0x03:
			// interrupt, swallowed
		default:
			b.stmt.WriteByte(c)
		}
	}
	return len(p), nil
}

func (b *fakeBadge) Read(p []byte) (int, error) {
	if b.rx.Len() == 0 {
		return 0, rawrepl.ErrPortIdle
	}
	return b.rx.Read(p)
}

func (b *fakeBadge) Close() error {
	b.closed = true
	return nil
}

// ---- wiring ----

func testChecks() []verify.Check {
	return []verify.Check{
		{Label: "player level", Namespace: "write", Key: verify.PrefKey("pl", "lvl"), Kind: verify.KindInt, WantInt: 99},
		{Label: "win streak", Namespace: "write", Key: verify.RawKey("ws"), Kind: verify.KindInt, WantInt: 99},
	}
}

func testOrchestrator(t *testing.T, badge *fakeBadge, payloadLen int) (*Orchestrator, *time.Duration) {
	t.Helper()

	payload := bytes.Repeat([]byte{0xA5}, payloadLen)
	plan, err := transfer.NewPlan("/main.py", payload, 32)
	if err != nil {
		t.Fatalf("NewPlan err=%v", err)
	}

	o := New(Config{
		VendorID:      "1a86",
		ProductID:     "7523",
		Baud:          115200,
		Match:         locate.MatchFail,
		Plan:          plan,
		Checks:        testChecks(),
		PromptTimeout: 100 * time.Millisecond,
		ExecTimeout:   100 * time.Millisecond,
		BootWait:      12 * time.Second,
	}, log.New(io.Discard, "", 0))

	// fast wire timings for the scripted badge
	o.repl.WriteDelay = 0
	o.repl.InterruptDelay = 0

	o.lister = &fakeLister{ports: []locate.Candidate{
		{Path: "/dev/ttyUSB0", VID: "1a86", PID: "7523"},
	}}
	o.open = func(path string, baud int) (replPort, error) {
		return badge, nil
	}

	var slept time.Duration
	o.sleep = func(d time.Duration) { slept += d }

	return o, &slept
}

type fakeLister struct {
	ports []locate.Candidate
}

func (f *fakeLister) List() ([]locate.Candidate, error) {
	return f.ports, nil
}

// ---- tests ----

func TestRun_HappyPath(t *testing.T) {
	badge := &fakeBadge{verifyOutputs: []string{"99\r\n", "99\r\n"}}
	o, slept := testOrchestrator(t, badge, 64)

	if err := o.Run(); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if o.Stage() != StageDone {
		t.Fatalf("stage=%s, want %s", o.Stage(), StageDone)
	}

	// 64 bytes at chunk 32: open + 2 writes + close + commit, then 2 read-backs
	if got := len(badge.statements); got != 7 {
		t.Fatalf("statements=%d, want 7", got)
	}
	if badge.reboots != 2 {
		t.Fatalf("reboots=%d, want 2 (payload run + back to normal)", badge.reboots)
	}
	if !badge.closed {
		t.Fatalf("port must be closed on success")
	}
	if *slept < 12*time.Second {
		t.Fatalf("boot settle skipped: slept %s", *slept)
	}
}

func TestRun_SecondRunConvergesToTheSameState(t *testing.T) {
	for i := 0; i < 2; i++ {
		badge := &fakeBadge{verifyOutputs: []string{"99\r\n", "99\r\n"}}
		o, _ := testOrchestrator(t, badge, 64)
		if err := o.Run(); err != nil {
			t.Fatalf("run %d: err=%v", i+1, err)
		}
		if o.Stage() != StageDone {
			t.Fatalf("run %d: stage=%s, want %s", i+1, o.Stage(), StageDone)
		}
	}
}

func TestRun_VerificationFailureListsMismatchesAndRecovers(t *testing.T) {
	badge := &fakeBadge{verifyOutputs: []string{"1\r\n", "2\r\n"}}
	o, _ := testOrchestrator(t, badge, 64)

	err := o.Run()

	var fe *verify.FailedError
	if !errors.As(err, &fe) {
		t.Fatalf("err=%v, want *verify.FailedError", err)
	}
	if len(fe.Mismatches) != 2 {
		t.Fatalf("mismatches=%d, want both keys", len(fe.Mismatches))
	}
	if o.Stage() != StageFailed {
		t.Fatalf("stage=%s, want %s", o.Stage(), StageFailed)
	}
	// payload reboot + best-effort recovery reboot
	if badge.reboots != 2 {
		t.Fatalf("reboots=%d, want 2 (device left bootable)", badge.reboots)
	}
	if !badge.closed {
		t.Fatalf("port must be closed on failure too")
	}
}

func TestRun_LocateFailureNeverOpensThePort(t *testing.T) {
	badge := &fakeBadge{}
	o, _ := testOrchestrator(t, badge, 64)
	o.lister = &fakeLister{} // nothing plugged in

	opened := false
	o.open = func(path string, baud int) (replPort, error) {
		opened = true
		return badge, nil
	}

	err := o.Run()

	var nf *locate.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err=%v, want *locate.NotFoundError", err)
	}
	if opened {
		t.Fatalf("port opened despite locate failure")
	}
	if o.Stage() != StageFailed {
		t.Fatalf("stage=%s, want %s", o.Stage(), StageFailed)
	}
}

func TestRun_ExplicitPortSkipsDiscovery(t *testing.T) {
	badge := &fakeBadge{verifyOutputs: []string{"99\r\n", "99\r\n"}}
	o, _ := testOrchestrator(t, badge, 32)
	o.cfg.Port = "/dev/ttyUSB7"
	o.lister = nil // must not be consulted

	var openedPath string
	o.open = func(path string, baud int) (replPort, error) {
		openedPath = path
		return badge, nil
	}

	if err := o.Run(); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if openedPath != "/dev/ttyUSB7" {
		t.Fatalf("opened %q, want the pinned path", openedPath)
	}
}
