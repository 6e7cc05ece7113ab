package led

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const sysfsLEDPath = "/sys/class/leds"

// Blink timing written to delay_on/delay_off when the timer trigger is
// selected, in milliseconds.
const (
	blinkOnMs  = "250"
	blinkOffMs = "250"
)

// patternTriggers maps the portable pattern names to kernel triggers.
var patternTriggers = map[string]string{
	"solid":     "none",
	"blink":     "timer",
	"heartbeat": "heartbeat",
}

// sysfs drives LEDs through /sys/class/leds/<name>/{trigger,brightness}.
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name
}

func newSysfs(leds map[string]string) *sysfs {
	return &sysfs{root: sysfsLEDPath, leds: leds}
}

// Set selects the trigger for pattern, if any, and then sets brightness
// when the LED is under manual control. Patterns that are not one of
// Patterns() are passed through as raw trigger names.
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	name, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("LED type %q not supported on this board", ledType)
	}
	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("LED %q not found at %s", ledType, dir)
	}

	manual := true
	if pattern != "" {
		trigger, ok := patternTriggers[pattern]
		if !ok {
			trigger = pattern
		}
		if err := s.setTrigger(dir, trigger); err != nil {
			return err
		}
		manual = trigger == "none"
	}
	if !manual {
		return nil
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("set LED brightness: %w", err)
	}
	return nil
}

func (s *sysfs) setTrigger(dir, trigger string) error {
	if supported := readTriggers(filepath.Join(dir, "trigger")); len(supported) > 0 && !slices.Contains(supported, trigger) {
		return fmt.Errorf("LED trigger %q not supported, have %s", trigger, strings.Join(supported, " "))
	}
	if err := os.WriteFile(filepath.Join(dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("set LED trigger: %w", err)
	}
	if trigger == "timer" {
		// The kernel creates these once the timer trigger is active.
		for file, ms := range map[string]string{"delay_on": blinkOnMs, "delay_off": blinkOffMs} {
			path := filepath.Join(dir, file)
			if _, err := os.Stat(path); err == nil {
				_ = os.WriteFile(path, []byte(ms), 0o644)
			}
		}
	}
	return nil
}

// readTriggers parses the trigger file, "none [timer] heartbeat ...",
// where the bracketed entry is the active one.
func readTriggers(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	fields := strings.Fields(string(data))
	for i, f := range fields {
		fields[i] = strings.Trim(f, "[]")
	}
	return fields
}

func (s *sysfs) Available() []string {
	return slices.Sorted(maps.Keys(s.leds))
}

func (s *sysfs) Patterns() []string {
	return slices.Sorted(maps.Keys(patternTriggers))
}
