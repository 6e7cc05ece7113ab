package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camsnap/internal/events"
)

// registerSSERoutes registers the capture event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Session, button and snapshot events as they happen",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"session-started": events.SessionStartedEvent{},
		"session-stopped": events.SessionStoppedEvent{},
		"button-pressed":  events.ButtonPressedEvent{},
		"snapshot-saved":  events.SnapshotSavedEvent{},
		"snapshot-failed": events.SnapshotFailedEvent{},
		"device-lost":     events.DeviceLostEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)

		defer events.SubscribeCapture(s.eventBus, eventCh)()

		// Clients see the current state right away instead of waiting for
		// the next transition.
		if s.options.Capture != nil {
			st := s.options.Capture.Status()
			if st.SessionID != "" && st.Device != nil && st.Format != nil {
				if err := send.Data(events.SessionStartedEvent{
					SessionID:  st.SessionID,
					Backend:    st.Backend,
					DeviceName: st.Device.Name,
					DeviceID:   st.Device.UniqueID,
					Format:     st.Format.Type,
					Width:      st.Width,
					Height:     st.Height,
					Timestamp:  st.StartedAt.Format(time.RFC3339),
				}); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
