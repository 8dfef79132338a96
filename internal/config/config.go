package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the bridge's admin/websocket
	// surface listens on.
	DefaultAddr = ":43127"
	// DefaultGRPCAddr is the default TCP address the gRPC TraceControl
	// surface listens on.
	DefaultGRPCAddr = ":43128"
	// DefaultPingInterval controls the keepalive cadence for WebSocket
	// connections on the uProtocol-facing transport hub.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients bounds concurrent WebSocket connections. Zero disables the limit.
	DefaultMaxClients = 256

	// DefaultQueuePriorityLevels is the default for
	// HandlerConfig.QueuePriorityLevels. The value is loaded and validated
	// only; the handler's queue is sized by bridge.DefaultPriorityLevels.
	DefaultQueuePriorityLevels = 3
	// DefaultAvailabilityWait is the default for HandlerConfig.AvailabilityWait.
	// The value is loaded and validated only; a request with no TTL waits
	// for the bridge latch's own 60 second default.
	DefaultAvailabilityWait = 60 * time.Second

	// DefaultTraceDumpWindow bounds how frequently trace dump triggers may be requested.
	DefaultTraceDumpWindow = time.Minute
	// DefaultTraceDumpBurst sets how many trace dump requests may be made per window.
	DefaultTraceDumpBurst = 1

	// DefaultLogLevel controls verbosity for bridge logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "bridge.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultTraceSnapshotInterval is not read by any package; the trace
	// writer flushes correlation-table snapshots on its own 200ms interval.
	DefaultTraceSnapshotInterval = 200 * time.Millisecond
)

// Config captures all runtime tunables for the bridge process.
type Config struct {
	Address          string
	GRPCAddress      string
	AllowedOrigins   []string
	MaxPayloadBytes  int64
	PingInterval     time.Duration
	MaxClients       int
	TLSCertPath      string
	TLSKeyPath       string
	AdminToken       string
	AdminAuthMode    string
	AdminClientCAPath string
	WSAuthSecret     string
	TraceDumpWindow  time.Duration
	TraceDumpBurst   int
	Logging          LoggingConfig

	// Handler identifies the single (service, instance, entity) endpoint this
	// process bridges, and which role it plays.
	Handler HandlerConfig
}

// HandlerConfig names the uProtocol/SOME/IP identity this deployment bridges
// and tunables specific to the dispatch engine.
type HandlerConfig struct {
	ServiceID           uint16
	InstanceID          uint16
	EntityID            uint32
	EntityVersion       uint32
	AuthorityName       string
	Role                string
	QueuePriorityLevels int
	AvailabilityWait    time.Duration
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the bridge configuration from environment variables, applying
// sane defaults and accumulating descriptive errors for invalid overrides
// rather than failing on the first one.
func Load() (*Config, error) {
	cfg := &Config{
		Address:         getString("BRIDGE_ADDR", DefaultAddr),
		GRPCAddress:     getString("BRIDGE_GRPC_ADDR", DefaultGRPCAddr),
		AllowedOrigins:  parseList(os.Getenv("BRIDGE_ALLOWED_ORIGINS")),
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		PingInterval:    DefaultPingInterval,
		MaxClients:      DefaultMaxClients,
		TLSCertPath:     strings.TrimSpace(os.Getenv("BRIDGE_TLS_CERT")),
		TLSKeyPath:      strings.TrimSpace(os.Getenv("BRIDGE_TLS_KEY")),
		AdminToken:        strings.TrimSpace(os.Getenv("BRIDGE_ADMIN_TOKEN")),
		AdminAuthMode:     getString("BRIDGE_ADMIN_AUTH_MODE", "token"),
		AdminClientCAPath: strings.TrimSpace(os.Getenv("BRIDGE_ADMIN_CLIENT_CA")),
		WSAuthSecret:      strings.TrimSpace(os.Getenv("BRIDGE_WS_AUTH_SECRET")),
		TraceDumpWindow: DefaultTraceDumpWindow,
		TraceDumpBurst:  DefaultTraceDumpBurst,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("BRIDGE_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("BRIDGE_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		Handler: HandlerConfig{
			ServiceID:           0x1001,
			InstanceID:          1,
			EntityID:            0x1001,
			EntityVersion:       1,
			AuthorityName:       getString("BRIDGE_AUTHORITY", "vehicle"),
			Role:                getString("BRIDGE_ROLE", "client"),
			QueuePriorityLevels: DefaultQueuePriorityLevels,
			AvailabilityWait:    DefaultAvailabilityWait,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("BRIDGE_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_TRACE_DUMP_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_TRACE_DUMP_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.TraceDumpWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_TRACE_DUMP_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_TRACE_DUMP_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.TraceDumpBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_SERVICE_ID")); raw != "" {
		value, err := strconv.ParseUint(raw, 0, 16)
		if err != nil {
			problems = append(problems, fmt.Sprintf("BRIDGE_SERVICE_ID must be a 16-bit integer, got %q", raw))
		} else {
			cfg.Handler.ServiceID = uint16(value)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_ENTITY_ID")); raw != "" {
		value, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			problems = append(problems, fmt.Sprintf("BRIDGE_ENTITY_ID must be a 32-bit integer, got %q", raw))
		} else {
			cfg.Handler.EntityID = uint32(value)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_QUEUE_PRIORITY_LEVELS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_QUEUE_PRIORITY_LEVELS must be a positive integer, got %q", raw))
		} else {
			cfg.Handler.QueuePriorityLevels = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BRIDGE_AVAILABILITY_WAIT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("BRIDGE_AVAILABILITY_WAIT must be a positive duration, got %q", raw))
		} else {
			cfg.Handler.AvailabilityWait = duration
		}
	}

	if role := strings.ToLower(cfg.Handler.Role); role != "client" && role != "server" {
		problems = append(problems, fmt.Sprintf("BRIDGE_ROLE must be \"client\" or \"server\", got %q", cfg.Handler.Role))
	}

	if mode := strings.ToLower(cfg.AdminAuthMode); mode != "token" && mode != "mtls" {
		problems = append(problems, fmt.Sprintf("BRIDGE_ADMIN_AUTH_MODE must be \"token\" or \"mtls\", got %q", cfg.AdminAuthMode))
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "BRIDGE_TLS_CERT and BRIDGE_TLS_KEY must be provided together")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
