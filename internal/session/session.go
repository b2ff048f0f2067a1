// Package session sequences one complete flash run: locate, interrupt,
// transfer, reboot, verify, reboot to normal. It owns the serial handle for
// the run's lifetime and all stage timeouts.
package session

import (
	"fmt"
	"log"
	"time"

	"github.com/edq/badge-flasher/internal/locate"
	"github.com/edq/badge-flasher/internal/rawrepl"
	"github.com/edq/badge-flasher/internal/session/serialport"
	"github.com/edq/badge-flasher/internal/transfer"
	"github.com/edq/badge-flasher/internal/verify"
)

// Stage is the orchestrator's position in the run. The machine is strictly
// linear; no stage is skipped on the happy path, and any stage may fall to
// StageFailed:
//
// idle -> located -> interrupted -> raw -> transferring
//      -> rebooting -> verifying -> rebooting -> done
type Stage string

const (
	StageIdle         Stage = "idle"
	StageLocated      Stage = "located"
	StageInterrupted  Stage = "interrupted"
	StageRawMode      Stage = "raw"
	StageTransferring Stage = "transferring"
	StageRebooting    Stage = "rebooting"
	StageVerifying    Stage = "verifying"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Config is everything one run needs, built before the run and immutable.
type Config struct {
	VendorID  string
	ProductID string
	Baud      int
	Match     locate.MatchPolicy

	// Port pins an explicit path and skips discovery.
	Port string

	Plan   transfer.Plan
	Checks []verify.Check

	PromptTimeout time.Duration
	ExecTimeout   time.Duration

	// BootWait is the settle time after a reboot, long enough for the
	// transferred payload to run once before verification.
	BootWait time.Duration
}

// replPort is the exact handle contract the orchestrator owns.
type replPort interface {
	rawrepl.Port
	Close() error
}

// Orchestrator runs the linear flash state machine.
type Orchestrator struct {
	cfg   Config
	repl  rawrepl.Config
	log   *log.Logger
	stage Stage

	// seams for tests; production wiring in New
	lister locate.PortLister
	open   func(path string, baud int) (replPort, error)
	sleep  func(d time.Duration)
}

// New wires an orchestrator against the real enumerator and serial stack.
func New(cfg Config, logger *log.Logger) *Orchestrator {
	repl := rawrepl.DefaultConfig()
	repl.PromptTimeout = cfg.PromptTimeout
	repl.ExecTimeout = cfg.ExecTimeout

	return &Orchestrator{
		cfg:    cfg,
		repl:   repl,
		log:    logger,
		stage:  StageIdle,
		lister: locate.USBLister{},
		open: func(path string, baud int) (replPort, error) {
			return serialport.Open(path, baud)
		},
		sleep: time.Sleep,
	}
}

// Stage reports the orchestrator's current position.
func (o *Orchestrator) Stage() Stage {
	return o.stage
}

func (o *Orchestrator) setStage(s Stage) {
	o.stage = s
	o.log.Printf("stage: %s", s)
}

// Run executes the whole session. Every stage failure aborts the run; after
// the port is open, failure still sends a best-effort reboot so the device
// is left bootable rather than stuck in raw mode. The port is closed on all
// exit paths.
func (o *Orchestrator) Run() error {
	o.setStage(StageIdle)

	// ---- locate ----

	path := o.cfg.Port
	if path == "" {
		finder := locate.New(o.cfg.VendorID, o.cfg.ProductID, o.cfg.Match, o.lister)
		id, skipped, err := finder.Find()
		if err != nil {
			return o.fail(nil, err)
		}
		for _, s := range skipped {
			o.log.Printf("locate: skipping %s (multiple matches, policy=first)", s)
		}
		path = id.Path
	}
	o.log.Printf("locate: using %s", path)
	o.setStage(StageLocated)

	// ---- open (held for the whole run) ----

	port, err := o.open(path, o.cfg.Baud)
	if err != nil {
		return o.fail(nil, fmt.Errorf("open %s: %w", path, err))
	}
	defer port.Close()

	sess, err := rawrepl.New(port, o.repl)
	if err != nil {
		return o.fail(nil, err)
	}

	// ---- interrupt + raw mode ----

	o.setStage(StageInterrupted)
	if err := sess.Enter(); err != nil {
		return o.fail(sess, err)
	}
	o.setStage(StageRawMode)

	// ---- transfer ----

	o.setStage(StageTransferring)
	o.log.Printf("transfer: %d bytes -> %s (chunk %d)",
		len(o.cfg.Plan.Payload), o.cfg.Plan.Dest, o.cfg.Plan.ChunkSize)
	if err := transfer.Push(sess, o.cfg.Plan); err != nil {
		return o.fail(sess, err)
	}

	// ---- first reboot: let the payload run once ----

	o.setStage(StageRebooting)
	if err := sess.SoftReboot(); err != nil {
		return o.fail(sess, err)
	}
	o.log.Printf("reboot: waiting %s for the payload to run", o.cfg.BootWait)
	o.sleep(o.cfg.BootWait)

	// ---- verify ----

	o.setStage(StageVerifying)
	if err := sess.Enter(); err != nil {
		return o.fail(sess, err)
	}
	if err := verify.Run(sess, o.cfg.Checks); err != nil {
		return o.fail(sess, err)
	}

	// ---- second reboot: back to normal operation ----

	o.setStage(StageRebooting)
	if err := sess.SoftReboot(); err != nil {
		return o.fail(sess, err)
	}

	o.setStage(StageDone)
	return nil
}

// fail records the terminal stage and tries to leave the device bootable.
// The recovery must never mask the original error: its own failure is only
// logged.
func (o *Orchestrator) fail(sess *rawrepl.Session, err error) error {
	o.setStage(StageFailed)
	if sess != nil && sess.State() != rawrepl.StateRebooting {
		if rerr := sess.SoftReboot(); rerr != nil {
			o.log.Printf("recovery reboot failed: %v", rerr)
		}
	}
	return err
}
