package events

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionStopped
	TypeButtonPressed
	TypeSnapshotSaved
	TypeSnapshotFailed
	TypeDeviceLost
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published once the first frame has arrived.
type SessionStartedEvent struct {
	SessionID  string `json:"session_id" example:"6f1c2a0e-8d7b-4b7e-9d43-1c7a2f0b5e11" doc:"Capture session identifier"`
	Backend    string `json:"backend" example:"native" doc:"Capture backend"`
	DeviceName string `json:"device_name" example:"USB Camera" doc:"Device friendly name"`
	DeviceID   string `json:"device_id" doc:"Device unique id"`
	Format     string `json:"format" example:"MJPG" doc:"Negotiated subtype"`
	Width      int    `json:"width" example:"1920" doc:"Frame width"`
	Height     int    `json:"height" example:"1080" doc:"Frame height"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionStoppedEvent is published after capture is stopped.
type SessionStoppedEvent struct {
	SessionID string `json:"session_id" doc:"Capture session identifier"`
	Snapshots int    `json:"snapshots" example:"3" doc:"Snapshots saved in this session"`
	Reason    string `json:"reason" example:"context canceled" doc:"Why the session ended"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStoppedEvent.
func (e SessionStoppedEvent) Type() uint32 { return TypeSessionStopped }

// ButtonPressedEvent is published for every detected button edge.
type ButtonPressedEvent struct {
	SessionID       string `json:"session_id" doc:"Capture session identifier"`
	Source          string `json:"source" example:"camera" doc:"Button source"`
	DeviceTimestamp uint64 `json:"device_timestamp" example:"133512345678900000" doc:"Press time in 100ns units, 0 if unknown"`
	Timestamp       string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ButtonPressedEvent.
func (e ButtonPressedEvent) Type() uint32 { return TypeButtonPressed }

// SnapshotSavedEvent is published after a JPEG has been written.
type SnapshotSavedEvent struct {
	SessionID string `json:"session_id" doc:"Capture session identifier"`
	Path      string `json:"path" example:"frame_00000.jpg" doc:"Written file"`
	Sequence  int    `json:"sequence" example:"0" doc:"Snapshot counter value"`
	Width     int    `json:"width" doc:"Image width"`
	Height    int    `json:"height" doc:"Image height"`
	Bytes     int    `json:"bytes" doc:"File size"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SnapshotSavedEvent.
func (e SnapshotSavedEvent) Type() uint32 { return TypeSnapshotSaved }

// SnapshotFailedEvent is published when grabbing or encoding fails.
type SnapshotFailedEvent struct {
	SessionID string `json:"session_id" doc:"Capture session identifier"`
	Stage     string `json:"stage" example:"grab" doc:"grab or encode"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SnapshotFailedEvent.
func (e SnapshotFailedEvent) Type() uint32 { return TypeSnapshotFailed }

// DeviceLostEvent is published when the streaming device disappears.
type DeviceLostEvent struct {
	SessionID  string `json:"session_id" doc:"Capture session identifier"`
	DeviceName string `json:"device_name" doc:"Device friendly name"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceLostEvent.
func (e DeviceLostEvent) Type() uint32 { return TypeDeviceLost }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
