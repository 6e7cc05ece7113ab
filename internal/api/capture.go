package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camsnap/internal/api/models"
	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/metrics"
)

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Capture Status",
		Description: "Run loop state, selected device and format, and snapshot counters",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		data := models.StatusData{Totals: metrics.GetTotals()}
		if s.options.Capture != nil {
			data.Status = s.options.Capture.Status()
		} else {
			data.Status = capture.Status{State: capture.StateIdle}
		}
		if s.options.Snapshots != nil {
			data.NextNumber = s.options.Snapshots.Next()
			data.OutputDir = s.options.Snapshots.Settings().Dir
		}
		return &models.StatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Capture devices and their formats as enumerated when the session started",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DeviceListResponse, error) {
		devices := []capture.Device{}
		if s.options.Capture != nil {
			if d := s.options.Capture.EnumeratedDevices(); d != nil {
				devices = d
			}
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{Devices: devices, Count: len(devices)},
		}, nil
	})
}
