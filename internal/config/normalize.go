// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	d := &cfg.Flasher.Device

	// VID/PID are matched as lower-case hex everywhere downstream.
	d.VendorID = strings.ToLower(strings.TrimPrefix(d.VendorID, "0x"))
	d.ProductID = strings.ToLower(strings.TrimPrefix(d.ProductID, "0x"))

	// No other normalization is performed here.
	// Timeout conversion and session wiring belong to later stages.
}
