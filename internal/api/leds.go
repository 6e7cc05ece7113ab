package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camsnap/internal/led"
)

// LEDRequest sets one LED.
type LEDRequest struct {
	Body struct {
		Type    string `json:"type" example:"act" doc:"LED type as listed by GET /api/leds"`
		Enabled bool   `json:"enabled" example:"true" doc:"Whether the LED should be on or off"`
		Pattern string `json:"pattern,omitempty" example:"blink" doc:"solid, blink, heartbeat or a raw kernel trigger"`
	}
}

// LEDCapabilities lists what the board offers.
type LEDCapabilities struct {
	AvailableTypes    []string `json:"available_types" doc:"LED types on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"Supported patterns"`
	StatusType        string   `json:"status_type,omitempty" example:"act" doc:"LED that shows capture state"`
}

// LEDCapabilitiesResponse wraps LEDCapabilities.
type LEDCapabilitiesResponse struct {
	Body LEDCapabilities
}

// registerLEDRoutes registers LED endpoints when a controller is configured.
// The capture loop drives the status LED through the event bus; these
// routes exist for testing wiring on a new board.
func (s *Server) registerLEDRoutes() {
	ctrl := s.options.LEDController
	if ctrl == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-leds",
		Method:      http.MethodGet,
		Path:        "/api/leds",
		Summary:     "LED Capabilities",
		Description: "LED types and patterns available on this board",
		Tags:        []string{"leds"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*LEDCapabilitiesResponse, error) {
		return &LEDCapabilitiesResponse{Body: LEDCapabilities{
			AvailableTypes:    ctrl.Available(),
			AvailablePatterns: ctrl.Patterns(),
			StatusType:        led.DefaultType(ctrl, ""),
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "set-led",
		Method:        http.MethodPost,
		Path:          "/api/leds",
		Summary:       "Set LED",
		Description:   "Switch an LED and optionally apply a pattern",
		Tags:          []string{"leds"},
		Security:      withAuth(),
		Errors:        []int{400, 401},
		DefaultStatus: http.StatusNoContent,
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		if err := ctrl.Set(input.Body.Type, input.Body.Enabled, input.Body.Pattern); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return nil, nil
	})
}
