// cmd/flasher/main.go
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/edq/badge-flasher/internal/config"
	"github.com/edq/badge-flasher/internal/locate"
	"github.com/edq/badge-flasher/internal/payload"
	"github.com/edq/badge-flasher/internal/session"
	"github.com/edq/badge-flasher/internal/transfer"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "YAML config file (optional, overrides built-in defaults)")
		port       = flag.String("port", "", "serial device path (skips USB discovery)")
		rainbow    = flag.Bool("rainbow", false, "enable rainbow LEDs on boot")
		autoBattle = flag.Bool("auto-battle", false, "enable auto-battle on boot")
		maxStats   = flag.Bool("max-stats", false, "max all combat stats to 99 (breaks PvP consensus)")
		yes        = flag.Bool("yes", false, "skip confirmation prompts")
	)
	flag.Parse()

	logger := log.Default()

	// --------------------
	// Load + validate config
	// --------------------

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = loaded
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	if *port != "" {
		cfg.Flasher.Device.Port = *port
	}

	// --------------------
	// Build payload + plan
	// --------------------

	if *maxStats && !*yes {
		fmt.Println("WARNING: -max-stats sets all combat stats to 99. This WILL break PvP")
		fmt.Println("battles (consensus hash mismatch -> battle voided). Only useful for")
		fmt.Println("auto-battle grinding or showing off on the character screen.")
		if !confirm("Continue? [y/N] ") {
			fmt.Println("Aborted.")
			return
		}
	}

	data, err := payload.Build(payload.Variants{
		Rainbow:    *rainbow,
		AutoBattle: *autoBattle,
		MaxStats:   *maxStats,
	})
	if err != nil {
		log.Fatalf("payload build failed: %v", err)
	}

	plan, err := transfer.NewPlan(cfg.Flasher.Transfer.Dest, data, cfg.Flasher.Transfer.ChunkSize)
	if err != nil {
		log.Fatalf("transfer plan failed: %v", err)
	}

	// --------------------
	// Run the session
	// --------------------

	orch := session.New(session.Config{
		VendorID:      cfg.Flasher.Device.VendorID,
		ProductID:     cfg.Flasher.Device.ProductID,
		Baud:          cfg.Flasher.Device.Baud,
		Match:         locate.MatchPolicy(cfg.Flasher.Device.Match),
		Port:          cfg.Flasher.Device.Port,
		Plan:          plan,
		Checks:        payload.Checks(),
		PromptTimeout: time.Duration(cfg.Flasher.Timeouts.PromptMs) * time.Millisecond,
		ExecTimeout:   time.Duration(cfg.Flasher.Timeouts.ExecMs) * time.Millisecond,
		BootWait:      time.Duration(cfg.Flasher.Timeouts.BootMs) * time.Millisecond,
	}, logger)

	if err := orch.Run(); err != nil {
		logger.Printf("flash failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("All checks passed. Badge is maxed out and rebooting into normal operation.")
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
