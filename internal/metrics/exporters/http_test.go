package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/camsnap/internal/metrics"
)

func scrape(t *testing.T, h http.Handler, accept string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	return w, w.Body.String()
}

func TestHTTPHandler(t *testing.T) {
	metrics.RecordButtonPress("http-test")

	h := HTTPHandler()
	scrape(t, h, "")
	_, body := scrape(t, h, "")

	for _, want := range []string{
		`camsnap_button_presses_total{source="http-test"}`,
		`camsnap_build_info{`,
		`promhttp_metric_handler_requests_total{code="200"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %s", want)
		}
	}

	// A second handler shares the registry instead of panicking.
	HTTPHandler()
}

func TestHTTPHandlerOpenMetrics(t *testing.T) {
	w, body := scrape(t, HTTPHandler(), "application/openmetrics-text; version=1.0.0")

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/openmetrics-text") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "# EOF") {
		t.Error("OpenMetrics response must end with # EOF")
	}
}
