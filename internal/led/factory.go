package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// New returns a controller for the detected board. When sysfsName is set it
// is used as the "status" LED regardless of the board. Falls back to a
// virtual controller that only records state.
func New(logger *slog.Logger, sysfsName string) Controller {
	if sysfsName != "" {
		logger.Info("Using configured LED", "sysfs_name", sysfsName)
		return newSysfs(map[string]string{"status": sysfsName})
	}

	boardModel := detectBoard(deviceTreeModelPath)
	logger.Info("Detecting board for LED control", "board_model", boardModel)

	switch {
	case strings.Contains(boardModel, "Raspberry Pi"):
		return newSysfs(map[string]string{"act": "ACT"})
	case strings.Contains(boardModel, "NanoPC-T6"):
		return newSysfs(map[string]string{"user": "usr_led", "system": "sys_led"})
	case strings.Contains(boardModel, "Orange Pi"):
		return newSysfs(map[string]string{"blue": "blue_led", "green": "green_led"})
	default:
		logger.Info("No LED support detected, using a virtual LED", "board_model", boardModel)
		return newVirtual(logger)
	}
}

// DefaultType returns the LED type the manager should drive: preferred when
// the controller has it, otherwise the first available one.
func DefaultType(c Controller, preferred string) string {
	available := c.Available()
	for _, t := range available {
		if t == preferred {
			return t
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return preferred
}

// detectBoard reads the device tree model to identify the board.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated
	return strings.TrimRight(string(data), "\x00")
}
