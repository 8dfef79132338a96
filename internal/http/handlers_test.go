package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"someipbridge/internal/bridge"
	"someipbridge/internal/logging"
	"someipbridge/internal/someip"
	"someipbridge/internal/trace"
)

func newTestIdentity(service, instance uint16, role bridge.Role) bridge.Identity {
	return bridge.Identity{Service: someip.ServiceID(service), Instance: someip.InstanceID(instance), Role: role}
}

type stubHandler struct {
	identity bridge.Identity
	metrics  *bridge.DispatchMetrics
	latch    *bridge.AvailabilityLatch
}

func (s *stubHandler) Identity() bridge.Identity       { return s.identity }
func (s *stubHandler) Metrics() *bridge.DispatchMetrics { return s.metrics }
func (s *stubHandler) Latch() *bridge.AvailabilityLatch { return s.latch }

type stubLimiter struct {
	remaining int
}

func (s *stubLimiter) Allow() bool {
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	return true
}

type stubDumper struct {
	location string
	err      error
	calls    int
}

func (s *stubDumper) DumpTrace(ctx context.Context) (string, error) {
	s.calls++
	return s.location, s.err
}

type stubOverrider struct {
	service   uint16
	instance  uint16
	available bool
	err       error
}

func (s *stubOverrider) SetAvailability(serviceID, instanceID uint16, available bool) error {
	if s.err != nil {
		return s.err
	}
	s.service, s.instance, s.available = serviceID, instanceID, available
	return nil
}

func TestLivenessHandlerReturnsJSON(t *testing.T) {
	fixed := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger(), TimeSource: func() time.Time { return fixed }})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)

	handlers.LivenessHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "alive" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
	if payload.Timestamp != fixed.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp %q", payload.Timestamp)
	}
}

func TestReadinessHandlerReportsHandlerAvailability(t *testing.T) {
	latch := bridge.NewAvailabilityLatch()
	latch.SetAndNotify(true)
	handler := &stubHandler{
		identity: newTestIdentity(0x1001, 1, bridge.RoleClient),
		metrics:  bridge.NewDispatchMetrics(),
		latch:    latch,
	}
	handlers := NewHandlerSet(Options{
		Logger:   logging.NewTestLogger(),
		Handlers: []ReadinessProvider{handler},
		Uptime:   func() time.Duration { return 45 * time.Second },
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	handlers.ReadinessHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Handlers      []struct {
			Service   uint16 `json:"service_id"`
			Available bool   `json:"available"`
		} `json:"handlers"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
	if payload.UptimeSeconds != 45 {
		t.Fatalf("unexpected uptime: %f", payload.UptimeSeconds)
	}
	if len(payload.Handlers) != 1 || !payload.Handlers[0].Available || payload.Handlers[0].Service != 0x1001 {
		t.Fatalf("unexpected handlers payload: %+v", payload.Handlers)
	}
}

func TestMetricsHandlerOutputsPrometheusFormat(t *testing.T) {
	metrics := bridge.NewDispatchMetrics()
	metrics.RecordDispatch(bridge.KindOutbound)
	metrics.RecordWorkerStart()
	metrics.ObserveTableSizes(bridge.Sizes{OfferedResources: 2, SubscriptionsForRemoteServices: 1})
	handler := &stubHandler{identity: newTestIdentity(0x2002, 1, bridge.RoleServer), metrics: metrics, latch: bridge.NewAvailabilityLatch()}

	traceCleaner := func() trace.StorageStats {
		return trace.StorageStats{Bundles: 5, Bytes: 12345, LastSweep: time.Unix(1700000000, 0)}
	}

	handlers := NewHandlerSet(Options{
		Logger:       logging.NewTestLogger(),
		Handlers:     []ReadinessProvider{handler},
		Uptime:       func() time.Duration { return 90 * time.Second },
		TraceCleaner: traceCleaner,
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handlers.MetricsHandler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Type"); got != "text/plain; version=0.0.4" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rr.Body.String()
	for _, substr := range []string{
		"someipbridge_uptime_seconds 90",
		"someipbridge_dispatch_total{service=\"0x2002\",instance=\"0x1\",kind=\"Outbound\"} 1",
		"someipbridge_correlation_table_size{service=\"0x2002\",instance=\"0x1\",table=\"offered_resources\"} 2",
		"someipbridge_worker_starts_total{service=\"0x2002\",instance=\"0x1\"} 1",
		"someipbridge_trace_bundles 5",
		"someipbridge_trace_bytes 12345",
		"someipbridge_trace_last_sweep_timestamp_seconds 1700000000",
	} {
		if !strings.Contains(body, substr) {
			t.Fatalf("metrics missing %q:\n%s", substr, body)
		}
	}
}

func TestTraceDumpHandlerAuthAndRateLimits(t *testing.T) {
	dumper := &stubDumper{location: "/tmp/latest"}
	limiter := &stubLimiter{remaining: 1}
	handlers := NewHandlerSet(Options{
		Logger:      logging.NewTestLogger(),
		TraceDump:   dumper,
		AdminToken:  "topsecret",
		RateLimiter: limiter,
	})

	makeRequest := func(token string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/trace/dump", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		handlers.TraceDumpHandler().ServeHTTP(rr, req)
		return rr
	}

	if resp := makeRequest(""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for missing token, got %d", resp.Code)
	}

	if resp := makeRequest("topsecret"); resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for authorised request, got %d", resp.Code)
	}
	if dumper.calls != 1 {
		t.Fatalf("expected dumper invoked once, got %d", dumper.calls)
	}

	if resp := makeRequest("topsecret"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", resp.Code)
	}
}

func TestAvailabilityOverrideHandlerAppliesOverride(t *testing.T) {
	override := &stubOverrider{}
	handlers := NewHandlerSet(Options{
		Logger:     logging.NewTestLogger(),
		AdminToken: "secret",
		Override:   override,
	})

	body := strings.NewReader(`{"service_id":4097,"instance_id":1,"available":true}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/availability/override", body)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()

	handlers.AvailabilityOverrideHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}
	if override.service != 4097 || !override.available {
		t.Fatalf("expected override applied, got %+v", override)
	}
}

func TestAvailabilityOverrideHandlerValidatesAuthAndPayload(t *testing.T) {
	override := &stubOverrider{}
	handlers := NewHandlerSet(Options{
		Logger:     logging.NewTestLogger(),
		AdminToken: "secret",
		Override:   override,
	})

	unauthorized := httptest.NewRequest(http.MethodPost, "/admin/availability/override", strings.NewReader(`{"available":true}`))
	rr := httptest.NewRecorder()
	handlers.AvailabilityOverrideHandler().ServeHTTP(rr, unauthorized)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing auth, got %d", rr.Code)
	}

	badPayload := httptest.NewRequest(http.MethodPost, "/admin/availability/override", strings.NewReader("not-json"))
	badPayload.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	handlers.AvailabilityOverrideHandler().ServeHTTP(rr, badPayload)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payload, got %d", rr.Code)
	}

	override.err = errors.New("unknown handler")
	failing := httptest.NewRequest(http.MethodPost, "/admin/availability/override", strings.NewReader(`{"service_id":1,"available":true}`))
	failing.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	handlers.AvailabilityOverrideHandler().ServeHTTP(rr, failing)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for rejected override, got %d", rr.Code)
	}
}
