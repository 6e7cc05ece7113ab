//go:build linux

package v4l2cam

import (
	"slices"
	"testing"

	"github.com/smazurov/camsnap/pkg/linuxav/hotplug"
)

func TestRemovalNodes(t *testing.T) {
	tests := []struct {
		name       string
		buttonPath string
		want       []string
	}{
		{"video only", "", []string{"video0"}},
		{"with button", "/dev/input/event5", []string{"video0", "event5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removalNodes("/dev/video0", tt.buttonPath); !slices.Equal(got, tt.want) {
				t.Errorf("removalNodes() = %v, want %v", got, tt.want)
			}
		})
	}

	unplugged := hotplug.Event{Action: hotplug.ActionRemove, Subsystem: hotplug.SubsystemInput, DevName: "input/event5"}
	if !slices.ContainsFunc(removalNodes("/dev/video0", "/dev/input/event5"), unplugged.Removes) {
		t.Error("removing the button node should end the session")
	}
}
