package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"someipbridge/internal/bridge"
	"someipbridge/internal/logging"
	"someipbridge/internal/trace"
)

// ReadinessProvider exposes the handler state required for readiness checks.
type ReadinessProvider interface {
	Identity() bridge.Identity
	Metrics() *bridge.DispatchMetrics
	Latch() *bridge.AvailabilityLatch
}

// StatsFunc returns cumulative process uptime.
type StatsFunc func() time.Duration

// TraceDumper triggers a trace bundle flush and returns the artefact location.
type TraceDumper interface {
	DumpTrace(ctx context.Context) (string, error)
}

// TraceDumperFunc adapts a function into a TraceDumper.
type TraceDumperFunc func(ctx context.Context) (string, error)

// DumpTrace implements TraceDumper.
func (f TraceDumperFunc) DumpTrace(ctx context.Context) (string, error) { return f(ctx) }

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// AvailabilityOverrider exposes the administrative override surface used to
// force an availability latch for test/maintenance scenarios.
type AvailabilityOverrider interface {
	SetAvailability(serviceID, instanceID uint16, available bool) error
}

// Options configures the HandlerSet.
type Options struct {
	Logger        *logging.Logger
	Handlers      []ReadinessProvider
	Uptime        StatsFunc
	TraceDump     TraceDumper
	TraceCleaner  func() trace.StorageStats
	AdminToken    string
	RateLimiter   RateLimiter
	TimeSource    func() time.Time
	Override      AvailabilityOverrider
}

// HandlerSet bundles the bridge's operational HTTP handlers.
type HandlerSet struct {
	logger       *logging.Logger
	handlers     []ReadinessProvider
	uptime       StatsFunc
	traceDump    TraceDumper
	traceCleaner func() trace.StorageStats
	adminToken   string
	rateLimiter  RateLimiter
	now          func() time.Time
	override     AvailabilityOverrider
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:       logger,
		handlers:     opts.Handlers,
		uptime:       opts.Uptime,
		traceDump:    opts.TraceDump,
		traceCleaner: opts.TraceCleaner,
		adminToken:   strings.TrimSpace(opts.AdminToken),
		rateLimiter:  opts.RateLimiter,
		now:          now,
		override:     opts.Override,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/trace/dump", h.TraceDumpHandler())
	if h.override != nil {
		mux.HandleFunc("/admin/availability/override", h.AvailabilityOverrideHandler())
	}
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports per-handler identity, availability, and uptime.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type handlerStatus struct {
		Service     uint16 `json:"service_id"`
		Instance    uint16 `json:"instance_id"`
		Role        string `json:"role"`
		Available   bool   `json:"available"`
		Readable    bool   `json:"latch_readable"`
	}
	type response struct {
		Status        string          `json:"status"`
		UptimeSeconds float64         `json:"uptime_seconds"`
		Handlers      []handlerStatus `json:"handlers"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{Status: "ok"}
		if h.uptime != nil {
			resp.UptimeSeconds = h.uptime().Seconds()
		}
		for _, handler := range h.handlers {
			if handler == nil {
				continue
			}
			identity := handler.Identity()
			available, readable := false, false
			if latch := handler.Latch(); latch != nil {
				available, readable = latch.IsSet()
			}
			resp.Handlers = append(resp.Handlers, handlerStatus{
				Service:   uint16(identity.Service),
				Instance:  uint16(identity.Instance),
				Role:      identity.Role.String(),
				Available: available,
				Readable:  readable,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics for every registered handler.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		uptime := float64(0)
		if h.uptime != nil {
			uptime = h.uptime().Seconds()
		}
		fmt.Fprintf(w, "# HELP someipbridge_uptime_seconds Process uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE someipbridge_uptime_seconds gauge\n")
		fmt.Fprintf(w, "someipbridge_uptime_seconds %.0f\n", uptime)

		fmt.Fprintf(w, "# HELP someipbridge_dispatch_total Dispatched queue items by kind.\n")
		fmt.Fprintf(w, "# TYPE someipbridge_dispatch_total counter\n")
		fmt.Fprintf(w, "# HELP someipbridge_correlation_table_size Current correlation table cardinality.\n")
		fmt.Fprintf(w, "# TYPE someipbridge_correlation_table_size gauge\n")
		for _, handler := range h.handlers {
			if handler == nil {
				continue
			}
			identity := handler.Identity()
			metrics := handler.Metrics()
			if metrics == nil {
				continue
			}
			label := fmt.Sprintf("service=%q,instance=%q", fmt.Sprintf("%#x", identity.Service), fmt.Sprintf("%#x", identity.Instance))
			for kind, count := range metrics.DispatchCounts() {
				fmt.Fprintf(w, "someipbridge_dispatch_total{%s,kind=%q} %d\n", label, kind.String(), count)
			}
			sizes := metrics.TableSizes()
			fmt.Fprintf(w, "someipbridge_correlation_table_size{%s,table=\"offered_resources\"} %d\n", label, sizes.OfferedResources)
			fmt.Fprintf(w, "someipbridge_correlation_table_size{%s,table=\"remote_subscriptions\"} %d\n", label, sizes.SubscriptionsForRemoteServices)
			fmt.Fprintf(w, "someipbridge_correlation_table_size{%s,table=\"uuid_to_someip_request\"} %d\n", label, sizes.UUIDToSomeipRequest)
			fmt.Fprintf(w, "someipbridge_correlation_table_size{%s,table=\"someip_request_to_utransport_request\"} %d\n", label, sizes.SomeipReqIDToUTransportRequest)
			started, stopped := metrics.WorkerLifecycleCounts()
			fmt.Fprintf(w, "someipbridge_worker_starts_total{%s} %d\n", label, started)
			fmt.Fprintf(w, "someipbridge_worker_stops_total{%s} %d\n", label, stopped)
		}

		if h.traceCleaner != nil {
			stats := h.traceCleaner()
			fmt.Fprintf(w, "# HELP someipbridge_trace_bundles Trace bundles currently retained.\n")
			fmt.Fprintf(w, "# TYPE someipbridge_trace_bundles gauge\n")
			fmt.Fprintf(w, "someipbridge_trace_bundles %d\n", stats.Bundles)
			fmt.Fprintf(w, "# HELP someipbridge_trace_bytes Total on-disk size of retained trace bundles in bytes.\n")
			fmt.Fprintf(w, "# TYPE someipbridge_trace_bytes gauge\n")
			fmt.Fprintf(w, "someipbridge_trace_bytes %d\n", stats.Bytes)
			if !stats.LastSweep.IsZero() {
				fmt.Fprintf(w, "# HELP someipbridge_trace_last_sweep_timestamp_seconds Unix timestamp of the last trace retention sweep.\n")
				fmt.Fprintf(w, "# TYPE someipbridge_trace_last_sweep_timestamp_seconds gauge\n")
				fmt.Fprintf(w, "someipbridge_trace_last_sweep_timestamp_seconds %d\n", stats.LastSweep.Unix())
			}
		}
	}
}

// TraceDumpHandler authorises and triggers trace bundle creation.
func (h *HandlerSet) TraceDumpHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "trace_dump"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("trace dump denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("trace dump denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("trace dump denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.traceDump == nil {
			reqLogger.Warn("trace dump denied: no dumper configured")
			http.Error(w, "trace dumping is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.traceDump.DumpTrace(r.Context())
		if err != nil {
			reqLogger.Error("trace dump trigger failed", logging.Error(err))
			http.Error(w, "failed to trigger trace dump", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("trace dump triggered")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

// AvailabilityOverrideHandler authorises and applies a manual availability override.
func (h *HandlerSet) AvailabilityOverrideHandler() http.HandlerFunc {
	type request struct {
		ServiceID  uint16 `json:"service_id"`
		InstanceID uint16 `json:"instance_id"`
		Available  bool   `json:"available"`
	}
	type response struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		logger := h.logger.With(
			logging.String("handler", "availability_override"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			logger.Warn("override denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			logger.Warn("override denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("override denied: invalid payload", logging.Error(err))
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}
		if err := h.override.SetAvailability(req.ServiceID, req.InstanceID, req.Available); err != nil {
			logger.Warn("override denied: invalid target", logging.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Info("availability override applied",
			logging.Int("service_id", int(req.ServiceID)),
			logging.Int("instance_id", int(req.InstanceID)),
		)
		writeJSON(w, http.StatusOK, response{Status: "ok"})
	}
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
