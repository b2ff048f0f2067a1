package rawrepl

// Raw-REPL control bytes and sentinels.
// These values are fixed by the device's interpreter and MUST NOT be
// configurable: a mismatch breaks response framing silently and only the
// timeouts would notice.

// ---- CONTROL BYTES ----

// ctrlInterrupt halts the running application (keyboard interrupt).
const ctrlInterrupt = 0x03

// ctrlEnterRaw switches the interpreter into raw mode.
const ctrlEnterRaw = 0x01

// ctrlExitRaw leaves raw mode and resumes normal execution.
const ctrlExitRaw = 0x02

// ctrlExecute terminates a raw-mode statement. At the friendly prompt the
// same byte triggers a soft reboot.
const ctrlExecute = 0x04

// ---- SENTINELS ----

// bannerRawMode is echoed by the interpreter once raw mode is active.
// The full banner is "raw REPL; CTRL-B to exit"; matching the stable prefix
// keeps us independent of trailing prompt characters.
const bannerRawMode = "raw REPL"

// ackExecute is echoed when the interpreter has accepted a statement.
const ackExecute = "OK"

// endOfOutput terminates normal statement output. The same byte appears a
// second time after the exception text, closing the response.
const endOfOutput = ctrlExecute
