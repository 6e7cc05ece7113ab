package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestVirtualController(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctrl := newVirtual(logger)

	if got := ctrl.Available(); len(got) != 1 || got[0] != VirtualType {
		t.Fatalf("Available() = %v, want [%s]", got, VirtualType)
	}
	if err := ctrl.Set("act", true, "solid"); err == nil {
		t.Error("expected error for unknown LED type")
	}
	if err := ctrl.Set(VirtualType, true, "strobe"); err == nil {
		t.Error("expected error for unsupported pattern")
	}
	if _, ok := ctrl.State(VirtualType); ok {
		t.Error("rejected Set calls must not record state")
	}

	if err := ctrl.Set(VirtualType, true, "blink"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := ctrl.Set(VirtualType, false, ""); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, _ := ctrl.State(VirtualType)
	if want := (State{Enabled: false, Pattern: "blink"}); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
}

// fakeLEDs creates /sys/class/leds/<name>/{trigger,brightness} under a temp dir.
func fakeLEDs(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for _, f := range []string{"trigger", "brightness"} {
			if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func TestSysfsController_Set(t *testing.T) {
	tests := []struct {
		name           string
		enabled        bool
		pattern        string
		wantTrigger    string
		wantBrightness string
	}{
		{"solid on", true, "solid", "none", "1"},
		{"solid off", false, "solid", "none", "0"},
		{"blink uses timer trigger", true, "blink", "timer", ""},
		{"raw trigger", true, "heartbeat", "heartbeat", ""},
		{"brightness only", true, "", "", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := fakeLEDs(t, "ACT")
			ctrl := newSysfs(map[string]string{"act": "ACT"})
			ctrl.root = root

			if err := ctrl.Set("act", tt.enabled, tt.pattern); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			trigger, _ := os.ReadFile(filepath.Join(root, "ACT", "trigger"))
			brightness, _ := os.ReadFile(filepath.Join(root, "ACT", "brightness"))
			if string(trigger) != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", trigger, tt.wantTrigger)
			}
			if string(brightness) != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", brightness, tt.wantBrightness)
			}
		})
	}
}

func TestSysfsController_Errors(t *testing.T) {
	ctrl := newSysfs(map[string]string{"act": "ACT"})
	ctrl.root = t.TempDir()

	if err := ctrl.Set("user", true, "solid"); err == nil {
		t.Error("expected error for unknown LED type")
	}
	if err := ctrl.Set("act", true, "solid"); err == nil {
		t.Error("expected error for missing sysfs node")
	}
}

func TestSysfsController_Available(t *testing.T) {
	ctrl := newSysfs(map[string]string{"user": "usr_led", "system": "sys_led"})
	got := ctrl.Available()
	if len(got) != 2 || got[0] != "system" || got[1] != "user" {
		t.Errorf("Available() = %v, want [system user]", got)
	}
	if len(ctrl.Patterns()) != 3 {
		t.Errorf("Patterns() = %v", ctrl.Patterns())
	}
}

func TestSysfsController_Triggers(t *testing.T) {
	root := fakeLEDs(t, "ACT")
	dir := filepath.Join(root, "ACT")
	for file, content := range map[string]string{
		"trigger":   "none [mmc0] timer heartbeat",
		"delay_on":  "500",
		"delay_off": "500",
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ctrl := newSysfs(map[string]string{"act": "ACT"})
	ctrl.root = root

	if got := readTriggers(filepath.Join(dir, "trigger")); len(got) != 4 || got[1] != "mmc0" {
		t.Fatalf("readTriggers() = %v", got)
	}
	if err := ctrl.Set("act", true, "disk-activity"); err == nil {
		t.Error("expected error for a trigger the LED does not offer")
	}

	if err := ctrl.Set("act", true, "blink"); err != nil {
		t.Fatalf("Set(blink) error = %v", err)
	}
	if on, _ := os.ReadFile(filepath.Join(dir, "delay_on")); string(on) != blinkOnMs {
		t.Errorf("delay_on = %q, want %q", on, blinkOnMs)
	}
}
