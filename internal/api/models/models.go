// Package models holds request and response types of the HTTP API.
package models

import (
	"time"

	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/internal/metrics"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.1" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS/architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Status models
type StatusData struct {
	capture.Status
	Totals     metrics.Totals `json:"totals" doc:"Process-wide counters"`
	NextNumber int            `json:"next_number" example:"4" doc:"Number the next snapshot file will get"`
	OutputDir  string         `json:"output_dir" example:"." doc:"Snapshot directory"`
}

type StatusResponse struct {
	Body StatusData
}

// Device models
type DeviceListData struct {
	Devices []capture.Device `json:"devices" doc:"Devices seen at the last enumeration"`
	Count   int              `json:"count" example:"2" doc:"Number of devices"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// Snapshot models
type LatestSnapshotResponse struct {
	ContentType  string    `header:"Content-Type"`
	LastModified time.Time `header:"Last-Modified"`
	Path         string    `header:"X-Snapshot-Path" doc:"File the image was written to"`
	Sequence     int       `header:"X-Snapshot-Sequence" doc:"Snapshot number"`
	Body         []byte
}

// Log models
type LogsInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"200" doc:"Newest entries to return, 0 for all"`
	Module string `query:"module" example:"capture" doc:"Only entries from this module"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Entries in chronological order"`
	Count   int                `json:"count" doc:"Number of returned entries"`
}

type LogsResponse struct {
	Body LogsData
}
