// internal/config/validate.go
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	f := cfg.Flasher

	// ------------------------------------------------------------
	// DEVICE IDENTITY
	// ------------------------------------------------------------

	for _, id := range []struct{ name, val string }{
		{"vendor_id", f.Device.VendorID},
		{"product_id", f.Device.ProductID},
	} {
		if id.val == "" {
			return fmt.Errorf("device: %s required", id.name)
		}
		if _, err := strconv.ParseUint(strings.TrimPrefix(id.val, "0x"), 16, 16); err != nil {
			return fmt.Errorf("device: %s must be 16-bit hex, got %q", id.name, id.val)
		}
	}

	if f.Device.Baud <= 0 {
		return fmt.Errorf("device: baud must be > 0, got %d", f.Device.Baud)
	}

	switch f.Device.Match {
	case "fail", "first":
	default:
		return fmt.Errorf("device: match must be \"fail\" or \"first\", got %q", f.Device.Match)
	}

	// ------------------------------------------------------------
	// TRANSFER
	// ------------------------------------------------------------

	if !strings.HasPrefix(f.Transfer.Dest, "/") {
		return fmt.Errorf("transfer: dest must be an absolute device path, got %q", f.Transfer.Dest)
	}
	if f.Transfer.ChunkSize <= 0 || f.Transfer.ChunkSize > 1024 {
		return fmt.Errorf("transfer: chunk_size must be in 1..1024, got %d", f.Transfer.ChunkSize)
	}

	// ------------------------------------------------------------
	// TIMEOUTS
	// ------------------------------------------------------------

	for _, t := range []struct {
		name string
		ms   int
	}{
		{"prompt_ms", f.Timeouts.PromptMs},
		{"exec_ms", f.Timeouts.ExecMs},
		{"boot_ms", f.Timeouts.BootMs},
	} {
		if t.ms <= 0 {
			return fmt.Errorf("timeouts: %s must be > 0, got %d", t.name, t.ms)
		}
	}

	return nil
}
