// Package transfer streams a byte payload into a file on the device using
// only the raw-mode execute primitive: there is no bulk-write channel, so
// the payload travels as base64 text inside generated write statements.
package transfer

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// executor is the exact raw-mode contract the engine uses.
// IMPORTANT: there must be NO other version of this interface anywhere.
type executor interface {
	Exec(stmt string) (string, error)
}

// Plan describes one transfer. Immutable once built.
type Plan struct {
	// Dest is the absolute destination path on the device filesystem.
	Dest string

	// Payload is the raw file content. Empty is valid and produces a
	// zero-byte file.
	Payload []byte

	// ChunkSize is the pre-encoding chunk length in bytes. It must keep
	// the encoded write statement under the device's line-input limit
	// with margin for the statement's own syntax.
	ChunkSize int
}

// maxChunkSize keeps one encoded chunk (4/3 expansion plus statement
// syntax) comfortably under the interpreter's line-input buffer.
const maxChunkSize = 1024

// NewPlan validates and builds a transfer plan.
func NewPlan(dest string, payload []byte, chunkSize int) (Plan, error) {
	if dest == "" || !strings.HasPrefix(dest, "/") {
		return Plan{}, fmt.Errorf("transfer: dest must be an absolute device path, got %q", dest)
	}
	if chunkSize <= 0 || chunkSize > maxChunkSize {
		return Plan{}, fmt.Errorf("transfer: chunk size must be in 1..%d, got %d", maxChunkSize, chunkSize)
	}
	return Plan{Dest: dest, Payload: payload, ChunkSize: chunkSize}, nil
}

// temp is the staging path: writes never touch the live destination, so an
// aborted transfer cannot leave a truncated entry point behind.
func (p Plan) temp() string {
	return p.Dest + ".new"
}

// chunks splits the payload and encodes each piece independently, so every
// write statement decodes on its own.
func (p Plan) chunks() []string {
	n := (len(p.Payload) + p.ChunkSize - 1) / p.ChunkSize
	out := make([]string, 0, n)
	for i := 0; i < len(p.Payload); i += p.ChunkSize {
		end := i + p.ChunkSize
		if end > len(p.Payload) {
			end = len(p.Payload)
		}
		out = append(out, base64.StdEncoding.EncodeToString(p.Payload[i:end]))
	}
	return out
}

// Push delivers the plan through exec: one open statement, one write
// statement per chunk in strict payload order, one close statement, then a
// commit that renames the staging file onto the destination. Any device
// exception aborts immediately.
func Push(exec executor, p Plan) error {
	if exec == nil {
		return errors.New("transfer: executor required")
	}

	if _, err := exec.Exec(openStmt(p.temp())); err != nil {
		return fmt.Errorf("transfer: open %s: %w", p.temp(), err)
	}

	for i, chunk := range p.chunks() {
		if _, err := exec.Exec(writeStmt(chunk)); err != nil {
			return fmt.Errorf("transfer: chunk %d: %w", i, err)
		}
	}

	if _, err := exec.Exec(closeStmt()); err != nil {
		return fmt.Errorf("transfer: close: %w", err)
	}

	if _, err := exec.Exec(commitStmt(p.temp(), p.Dest)); err != nil {
		return fmt.Errorf("transfer: commit %s: %w", p.Dest, err)
	}
	return nil
}

// ---- statement builders ----

func openStmt(tmp string) string {
	return join(
		"import ubinascii, os",
		fmt.Sprintf("f = open(%q, 'wb')", tmp),
	)
}

func writeStmt(b64 string) string {
	return fmt.Sprintf("f.write(ubinascii.a2b_base64(%q))", b64)
}

func closeStmt() string {
	return "f.close()"
}

// commitStmt replaces the destination atomically where the filesystem
// allows. The remove tolerates FAT, where rename does not overwrite; the
// sync tolerates ports that do not expose os.sync.
func commitStmt(tmp, dest string) string {
	return join(
		"try:",
		fmt.Sprintf("    os.remove(%q)", dest),
		"except OSError:",
		"    pass",
		fmt.Sprintf("os.rename(%q, %q)", tmp, dest),
		"try:",
		"    os.sync()",
		"except AttributeError:",
		"    pass",
	)
}

// join assembles a multi-line statement with the line endings the raw
// prompt expects.
func join(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}
