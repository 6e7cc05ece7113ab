package led

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// VirtualType is the single LED a virtual controller exposes.
const VirtualType = "status"

// State is the last value set on a virtual LED.
type State struct {
	Enabled bool
	Pattern string
}

// virtual stands in for boards without a controllable LED. It keeps the
// requested state so the API and logs still show what capture is doing.
type virtual struct {
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]State
}

func newVirtual(logger *slog.Logger) *virtual {
	return &virtual{logger: logger, states: map[string]State{}}
}

func (v *virtual) Set(ledType string, enabled bool, pattern string) error {
	if ledType != VirtualType {
		return fmt.Errorf("unknown LED type %q", ledType)
	}
	if pattern != "" && !slices.Contains(v.Patterns(), pattern) {
		return fmt.Errorf("unsupported pattern %q", pattern)
	}

	v.mu.Lock()
	prev := v.states[ledType]
	next := State{Enabled: enabled, Pattern: pattern}
	if pattern == "" {
		next.Pattern = prev.Pattern
	}
	v.states[ledType] = next
	v.mu.Unlock()

	if prev != next {
		v.logger.Debug("Virtual LED changed", "led_type", ledType, "enabled", enabled, "pattern", next.Pattern)
	}
	return nil
}

// State returns the last state set for ledType.
func (v *virtual) State(ledType string) (State, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.states[ledType]
	return s, ok
}

func (v *virtual) Available() []string {
	return []string{VirtualType}
}

func (v *virtual) Patterns() []string {
	return []string{"solid", "blink", "heartbeat"}
}
