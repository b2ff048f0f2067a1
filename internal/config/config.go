// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Flasher FlasherConfig `yaml:"flasher"`
}

type FlasherConfig struct {
	Device   DeviceConfig   `yaml:"device"`
	Transfer TransferConfig `yaml:"transfer"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	VendorID  string `yaml:"vendor_id"`  // hex, no 0x prefix
	ProductID string `yaml:"product_id"` // hex, no 0x prefix
	Baud      int    `yaml:"baud"`

	// Port pins an explicit device path and skips discovery (optional).
	Port string `yaml:"port"`

	// Match is the multi-device policy: "fail" or "first".
	Match string `yaml:"match"`
}

// ---- TRANSFER ----

type TransferConfig struct {
	Dest      string `yaml:"dest"`
	ChunkSize int    `yaml:"chunk_size"`
}

// ---- TIMEOUTS ----

type TimeoutsConfig struct {
	PromptMs int `yaml:"prompt_ms"`
	ExecMs   int `yaml:"exec_ms"`
	BootMs   int `yaml:"boot_ms"`
}

// Default returns the built-in configuration for a CH340-attached
// CactusCon 14 badge. A config file is only needed to override it.
func Default() *Config {
	return &Config{
		Flasher: FlasherConfig{
			Device: DeviceConfig{
				VendorID:  "1a86",
				ProductID: "7523",
				Baud:      115200,
				Match:     "fail",
			},
			Transfer: TransferConfig{
				Dest:      "/main.py",
				ChunkSize: 256,
			},
			Timeouts: TimeoutsConfig{
				PromptMs: 3000,
				ExecMs:   10000,
				BootMs:   12000,
			},
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
