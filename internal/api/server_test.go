package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/smazurov/camsnap/internal/api/models"
	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/events"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/internal/metrics"
	"github.com/smazurov/camsnap/internal/metrics/exporters"
	"github.com/smazurov/camsnap/internal/snapshot"
)

type fakeCapture struct {
	status  capture.Status
	devices []capture.Device
}

func (f *fakeCapture) Status() capture.Status               { return f.status }
func (f *fakeCapture) EnumeratedDevices() []capture.Device { return f.devices }

type fakeSnapshots struct {
	mu     sync.Mutex
	latest *snapshot.Result
	jpeg   []byte
}

func (f *fakeSnapshots) Latest() (snapshot.Result, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return snapshot.Result{}, nil, snapshot.ErrNoSnapshot
	}
	return *f.latest, f.jpeg, nil
}

func (f *fakeSnapshots) Settings() snapshot.Settings {
	s := snapshot.DefaultSettings()
	s.Dir = "/var/lib/camsnap"
	return s
}

func (f *fakeSnapshots) Next() int { return 4 }

type fakeLEDs struct {
	calls []string
}

func (f *fakeLEDs) Set(ledType string, enabled bool, pattern string) error {
	if ledType != "act" {
		return errors.New("unknown LED type")
	}
	f.calls = append(f.calls, pattern)
	return nil
}
func (f *fakeLEDs) Available() []string { return []string{"act"} }
func (f *fakeLEDs) Patterns() []string  { return []string{"solid", "blink", "heartbeat"} }

func streamingCapture() *fakeCapture {
	dev := capture.Device{
		Index:    1,
		Name:     "USB Camera",
		UniqueID: "usb-0000:00:14.0-2",
		Formats: []capture.Format{
			{Index: 0, Width: 1920, Height: 1080, FrameRate: 30, Type: "MJPG"},
		},
	}
	format := dev.Formats[0]
	return &fakeCapture{
		status: capture.Status{
			State:     capture.StateStreaming,
			SessionID: "session-1",
			Backend:   "fake",
			Device:    &dev,
			Format:    &format,
			Width:     1920,
			Height:    1080,
			Snapshots: 2,
			StartedAt: time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC),
		},
		devices: []capture.Device{{Index: 0, Name: "FHD Webcam"}, dev},
	}
}

func newTestServer(t *testing.T, opts *Options) (*Server, humatest.TestAPI) {
	t.Helper()
	s := NewServer(opts)
	return s, humatest.Wrap(t, s.GetAPI())
}

func basicAuth(user, pass string) string {
	return "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestHealthAndVersion(t *testing.T) {
	_, api := newTestServer(t, &Options{})

	resp := api.Get("/api/health")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", resp.Code, resp.Body.String())
	}

	resp = api.Get("/api/version")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"go_version"`) {
		t.Errorf("version = %d %s", resp.Code, resp.Body.String())
	}
}

func TestStatus(t *testing.T) {
	_, api := newTestServer(t, &Options{Capture: streamingCapture(), Snapshots: &fakeSnapshots{}})

	resp := api.Get("/api/status")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d %s", resp.Code, resp.Body.String())
	}

	var got models.StatusData
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.State != capture.StateStreaming || got.Device == nil || got.Device.Name != "USB Camera" {
		t.Errorf("status = %+v", got.Status)
	}
	if got.Width != 1920 || got.Snapshots != 2 {
		t.Errorf("width=%d snapshots=%d", got.Width, got.Snapshots)
	}
	if got.NextNumber != 4 || got.OutputDir != "/var/lib/camsnap" {
		t.Errorf("next=%d dir=%q", got.NextNumber, got.OutputDir)
	}
}

func TestStatusWithoutRunner(t *testing.T) {
	_, api := newTestServer(t, &Options{})

	resp := api.Get("/api/status")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"state":"idle"`) {
		t.Errorf("status = %d %s", resp.Code, resp.Body.String())
	}
}

func TestDevices(t *testing.T) {
	tests := []struct {
		name    string
		capture CaptureService
		want    int
	}{
		{"enumerated", streamingCapture(), 2},
		{"not started", &fakeCapture{}, 0},
		{"no runner", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, api := newTestServer(t, &Options{Capture: tt.capture})
			resp := api.Get("/api/devices")
			if resp.Code != http.StatusOK {
				t.Fatalf("devices = %d", resp.Code)
			}
			var got models.DeviceListData
			if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Count != tt.want || len(got.Devices) != tt.want {
				t.Errorf("count = %d, devices = %d, want %d", got.Count, len(got.Devices), tt.want)
			}
		})
	}
}

func TestLatestSnapshot(t *testing.T) {
	store := &fakeSnapshots{}
	_, api := newTestServer(t, &Options{Snapshots: store})

	if resp := api.Get("/api/snapshots/latest"); resp.Code != http.StatusNotFound {
		t.Fatalf("before first save = %d, want 404", resp.Code)
	}

	store.mu.Lock()
	store.latest = &snapshot.Result{
		Path:     "frame_00003.jpg",
		Sequence: 3,
		SavedAt:  time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC),
	}
	store.jpeg = []byte{0xff, 0xd8, 0xff, 0xd9}
	store.mu.Unlock()

	resp := api.Get("/api/snapshots/latest")
	if resp.Code != http.StatusOK {
		t.Fatalf("latest = %d %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := resp.Header().Get("X-Snapshot-Path"); got != "frame_00003.jpg" {
		t.Errorf("X-Snapshot-Path = %q", got)
	}
	if got := resp.Header().Get("X-Snapshot-Sequence"); got != "3" {
		t.Errorf("X-Snapshot-Sequence = %q", got)
	}
	if got := resp.Body.Bytes(); len(got) != 4 || got[0] != 0xff || got[1] != 0xd8 {
		t.Errorf("body = %x", got)
	}
}

func TestBasicAuth(t *testing.T) {
	_, api := newTestServer(t, &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Capture:      streamingCapture(),
	})

	tests := []struct {
		name string
		path string
		args []any
		want int
	}{
		{"health is public", "/api/health", nil, http.StatusOK},
		{"missing credentials", "/api/status", nil, http.StatusUnauthorized},
		{"wrong password", "/api/status", []any{basicAuth("admin", "nope")}, http.StatusUnauthorized},
		{"bearer token", "/api/status", []any{"Authorization: Bearer abc"}, http.StatusUnauthorized},
		{"valid header", "/api/status", []any{basicAuth("admin", "secret")}, http.StatusOK},
		{"valid query", "/api/devices?auth=" + base64.StdEncoding.EncodeToString([]byte("admin:secret")), nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get(tt.path, tt.args...)
			if resp.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, resp.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestLogs(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	logger := logging.GetLogger("snapshot")
	logger.Info("Saved", "path", "frame_00000.jpg")
	logger.Info("Saved", "path", "frame_00001.jpg")
	logging.GetLogger("button").Info("GPIO button ready")

	_, api := newTestServer(t, &Options{})

	resp := api.Get("/api/logs?module=snapshot&limit=1")
	if resp.Code != http.StatusOK {
		t.Fatalf("logs = %d %s", resp.Code, resp.Body.String())
	}
	var got models.LogsData
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 1 || got.Entries[0].Attributes["path"] != "frame_00001.jpg" {
		t.Errorf("logs = %+v", got)
	}
}

func TestLogForwarder(t *testing.T) {
	bus := events.New()
	ch := make(chan any, 2)
	unsub := events.SubscribeToChannel[events.LogEntryEvent](bus, ch)
	defer unsub()

	forward := LogForwarder(bus)
	forward(logging.LogEntry{Level: "info", Module: "capture", Message: "Streaming"})
	forward(logging.LogEntry{Level: "warn", Module: "capture", Message: "Grab frame failed"})

	for want := uint64(1); want <= 2; want++ {
		select {
		case ev := <-ch:
			if e := ev.(events.LogEntryEvent); e.Seq != want {
				t.Errorf("Seq = %d, want %d", e.Seq, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for log event")
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.RecordButtonPress("camera")
	s := NewServer(&Options{PrometheusHandler: exporters.HTTPHandler()})

	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `camsnap_button_presses_total{source="camera"}`) {
		t.Error("button counter missing from /metrics")
	}
}

func TestLEDRoutes(t *testing.T) {
	_, api := newTestServer(t, &Options{})
	if resp := api.Get("/api/leds"); resp.Code != http.StatusNotFound {
		t.Errorf("without controller = %d, want 404", resp.Code)
	}

	leds := &fakeLEDs{}
	_, api = newTestServer(t, &Options{LEDController: leds})

	resp := api.Get("/api/leds")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"status_type":"act"`) {
		t.Errorf("capabilities = %d %s", resp.Code, resp.Body.String())
	}

	resp = api.Post("/api/leds", map[string]any{"type": "act", "enabled": true, "pattern": "blink"})
	if resp.Code != http.StatusNoContent {
		t.Errorf("set = %d %s", resp.Code, resp.Body.String())
	}
	if len(leds.calls) != 1 || leds.calls[0] != "blink" {
		t.Errorf("calls = %v", leds.calls)
	}

	resp = api.Post("/api/leds", map[string]any{"type": "power", "enabled": true})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("unknown LED = %d, want 400", resp.Code)
	}
}

func TestEventStream(t *testing.T) {
	bus := events.New()
	s := NewServer(&Options{EventBus: bus, Capture: streamingCapture()})
	ts := httptest.NewServer(s.GetMux())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	// Keep publishing until the subscription is in place.
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bus.Publish(events.SnapshotSavedEvent{SessionID: "session-1", Path: "frame_00002.jpg", Sequence: 2})
			}
		}
	}()

	seen := map[string]bool{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			seen[name] = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "frame_00002.jpg") {
			break
		}
	}

	if !seen["session-started"] {
		t.Error("current session was not replayed on connect")
	}
	if !seen["snapshot-saved"] {
		t.Errorf("snapshot-saved not received, saw %v", seen)
	}
}

func TestServeAndStop(t *testing.T) {
	s := NewServer(&Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health over TCP = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve() = %v, want ErrServerClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"limit=10", "limit=10"},
		{"auth=YWRtaW46c2VjcmV0&module=capture", "auth=REDACTED&module=capture"},
	}
	for _, tt := range tests {
		q, err := url.ParseQuery(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := redactQuery(q); got != tt.want {
			t.Errorf("redactQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(&Options{})
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/status", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Snapshot-Path") {
		t.Errorf("Expose-Headers = %q", got)
	}
}

func TestAccessLogRedactsAuth(t *testing.T) {
	logging.Initialize(logging.Config{Level: "debug", Format: "text"})
	_, api := newTestServer(t, &Options{})

	if resp := api.Get("/api/status?auth=YWRtaW46c2VjcmV0"); resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}

	entries := logging.GetBuffer().Tail("http", 0)
	if len(entries) == 0 {
		t.Fatal("no access log entry")
	}
	last := entries[len(entries)-1]
	if last.Attributes["path"] != "/api/status" || last.Attributes["query"] != "auth=REDACTED" {
		t.Errorf("access log attributes = %v", last.Attributes)
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	s := NewServer(&Options{})
	for _, path := range []string{"/api/leds", "/nope"} {
		rec := httptest.NewRecorder()
		s.GetMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}
