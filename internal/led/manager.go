package led

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camsnap/internal/events"
)

// DefaultFlash is how long the LED goes dark to acknowledge a snapshot.
const DefaultFlash = 150 * time.Millisecond

// Manager drives one LED from capture events: solid while streaming, a short
// off-flash per saved snapshot, blinking after a failure or device loss and
// off when the session ends.
//
// The bus delivers each event type on its own goroutine, so a device loss and
// the session stop that follows can arrive in either order. A loss latches
// the blink until the next session starts.
type Manager struct {
	controller Controller
	ledType    string
	eventBus   *events.Bus
	logger     *slog.Logger
	flash      time.Duration

	mu          sync.Mutex
	unsubscribe []func()
	streaming   bool
	lost        bool
	flashTimer  *time.Timer
}

// NewManager creates a manager for ledType.
func NewManager(controller Controller, ledType string, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		ledType:    ledType,
		eventBus:   eventBus,
		logger:     logger,
		flash:      DefaultFlash,
	}
}

// Start subscribes to capture events.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribe = append(m.unsubscribe,
		m.eventBus.Subscribe(func(events.SessionStartedEvent) { m.sessionStarted() }),
		m.eventBus.Subscribe(func(events.SessionStoppedEvent) { m.sessionStopped() }),
		m.eventBus.Subscribe(func(events.SnapshotSavedEvent) { m.flashOnce() }),
		m.eventBus.Subscribe(func(events.SnapshotFailedEvent) { m.failed() }),
		m.eventBus.Subscribe(func(events.DeviceLostEvent) { m.deviceLost() }),
	)
	m.logger.Info("LED manager started", "led_type", m.ledType)
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	m.stopFlashLocked()
	m.streaming = false
	m.lost = false
	m.setLocked(false, "solid")
	m.logger.Info("LED manager stopped")
}

func (m *Manager) sessionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaming = true
	m.lost = false
	m.stopFlashLocked()
	m.setLocked(true, "solid")
}

func (m *Manager) sessionStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaming = false
	m.stopFlashLocked()
	if m.lost {
		return
	}
	m.setLocked(false, "solid")
}

func (m *Manager) deviceLost() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaming = false
	m.lost = true
	m.stopFlashLocked()
	m.setLocked(true, "blink")
}

func (m *Manager) failed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopFlashLocked()
	m.setLocked(true, "blink")
}

// flashOnce turns the LED off briefly, then restores the streaming state.
func (m *Manager) flashOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lost {
		return
	}
	m.stopFlashLocked()
	m.setLocked(false, "solid")
	m.flashTimer = time.AfterFunc(m.flash, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.lost {
			m.setLocked(m.streaming, "solid")
		}
	})
}

func (m *Manager) stopFlashLocked() {
	if m.flashTimer != nil {
		m.flashTimer.Stop()
		m.flashTimer = nil
	}
}

func (m *Manager) setLocked(enabled bool, pattern string) {
	if err := m.controller.Set(m.ledType, enabled, pattern); err != nil {
		m.logger.Warn("Failed to set LED", "led_type", m.ledType, "pattern", pattern, "error", err)
	}
}
