// Package payload builds the opaque blob delivered to the device and the
// set of values expected to persist once that blob has executed after a
// boot. It is glue around the protocol core: the core treats the bytes as
// opaque.
package payload

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/edq/badge-flasher/internal/verify"
)

//go:embed main.py
var moddedMain string

// Dest is the entry-point path the device's boot sequence executes.
const Dest = "/main.py"

// Variants are the optional behavior toggles baked into the payload before
// transfer. Each flips exactly one ENABLE_ marker.
type Variants struct {
	// Rainbow starts the LED rainbow on boot.
	Rainbow bool

	// AutoBattle enables unattended battling.
	AutoBattle bool

	// MaxStats sets all combat stats to 99. This breaks PvP consensus
	// hashing; callers should make the user confirm it.
	MaxStats bool
}

// Build returns the payload bytes with the requested variants applied.
func Build(v Variants) ([]byte, error) {
	src := moddedMain
	toggles := []struct {
		on     bool
		marker string
	}{
		{v.Rainbow, "ENABLE_RAINBOW"},
		{v.AutoBattle, "ENABLE_AUTO_BATTLE"},
		{v.MaxStats, "ENABLE_MAX_STATS"},
	}
	for _, t := range toggles {
		if !t.on {
			continue
		}
		off := t.marker + " = False"
		if !strings.Contains(src, off) {
			return nil, fmt.Errorf("payload: marker %s missing from embedded source", t.marker)
		}
		src = strings.Replace(src, off, t.marker+" = True", 1)
	}
	return []byte(src), nil
}

// Checks returns the post-reboot expectations. The payload writes both
// namespaces; reading back one ('write') is sufficient because the same
// values go to both.
func Checks() []verify.Check {
	const ns = "write"
	return []verify.Check{
		{
			Label:     "achievements",
			Namespace: ns,
			Key:       verify.RawKey("ach"),
			Kind:      verify.KindListCount,
			WantInt:   14,
		},
		{
			Label:     "player level",
			Namespace: ns,
			Key:       verify.PrefKey("pl", "lvl"),
			Kind:      verify.KindInt,
			WantInt:   99,
		},
		{
			Label:     "station wins",
			Namespace: ns,
			Key:       verify.PrefKey("st", "win"),
			Kind:      verify.KindInt,
			WantInt:   999,
		},
		{
			Label:     "win streak",
			Namespace: ns,
			Key:       verify.RawKey("ws"),
			Kind:      verify.KindInt,
			WantInt:   99,
		},
	}
}
