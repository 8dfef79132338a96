package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func clearBridgeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BRIDGE_ADDR", "BRIDGE_GRPC_ADDR", "BRIDGE_ALLOWED_ORIGINS", "BRIDGE_MAX_PAYLOAD_BYTES",
		"BRIDGE_PING_INTERVAL", "BRIDGE_MAX_CLIENTS", "BRIDGE_TLS_CERT",
		"BRIDGE_TLS_KEY", "BRIDGE_ADMIN_TOKEN", "BRIDGE_ADMIN_AUTH_MODE", "BRIDGE_ADMIN_CLIENT_CA", "BRIDGE_WS_AUTH_SECRET",
		"BRIDGE_LOG_LEVEL", "BRIDGE_LOG_PATH", "BRIDGE_LOG_MAX_SIZE_MB",
		"BRIDGE_LOG_MAX_BACKUPS", "BRIDGE_LOG_MAX_AGE_DAYS", "BRIDGE_LOG_COMPRESS",
		"BRIDGE_TRACE_DUMP_WINDOW", "BRIDGE_TRACE_DUMP_BURST",
		"BRIDGE_SERVICE_ID", "BRIDGE_ENTITY_ID", "BRIDGE_AUTHORITY", "BRIDGE_ROLE",
		"BRIDGE_QUEUE_PRIORITY_LEVELS", "BRIDGE_AVAILABILITY_WAIT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("BRIDGE_ROLE", "client")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.GRPCAddress != DefaultGRPCAddr {
		t.Fatalf("expected default grpc addr %q, got %q", DefaultGRPCAddr, cfg.GRPCAddress)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected no allowed origins, got %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("expected default max payload %d, got %d", DefaultMaxPayloadBytes, cfg.MaxPayloadBytes)
	}
	if cfg.PingInterval != DefaultPingInterval {
		t.Fatalf("expected default ping interval %v, got %v", DefaultPingInterval, cfg.PingInterval)
	}
	if cfg.MaxClients != DefaultMaxClients {
		t.Fatalf("expected default max clients %d, got %d", DefaultMaxClients, cfg.MaxClients)
	}
	if cfg.TLSCertPath != "" || cfg.TLSKeyPath != "" {
		t.Fatalf("expected TLS paths to be empty, got cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("expected admin token to be empty by default")
	}
	if cfg.AdminAuthMode != "token" {
		t.Fatalf("expected default admin auth mode token, got %q", cfg.AdminAuthMode)
	}
	if cfg.TraceDumpWindow != DefaultTraceDumpWindow {
		t.Fatalf("expected default trace dump window %v, got %v", DefaultTraceDumpWindow, cfg.TraceDumpWindow)
	}
	if cfg.TraceDumpBurst != DefaultTraceDumpBurst {
		t.Fatalf("expected default trace dump burst %d, got %d", DefaultTraceDumpBurst, cfg.TraceDumpBurst)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("expected default log path %q, got %q", DefaultLogPath, cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("expected default log max size %d, got %d", DefaultLogMaxSizeMB, cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("expected default log compress %t, got %t", DefaultLogCompress, cfg.Logging.Compress)
	}
	if cfg.Handler.Role != "client" {
		t.Fatalf("expected default role client, got %q", cfg.Handler.Role)
	}
	if cfg.Handler.QueuePriorityLevels != DefaultQueuePriorityLevels {
		t.Fatalf("expected default queue priority levels %d, got %d", DefaultQueuePriorityLevels, cfg.Handler.QueuePriorityLevels)
	}
	if cfg.Handler.AvailabilityWait != DefaultAvailabilityWait {
		t.Fatalf("expected default availability wait %v, got %v", DefaultAvailabilityWait, cfg.Handler.AvailabilityWait)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("BRIDGE_ADDR", "127.0.0.1:9000")
	t.Setenv("BRIDGE_GRPC_ADDR", "127.0.0.1:9001")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "https://example.com, https://demo.local")
	t.Setenv("BRIDGE_MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("BRIDGE_PING_INTERVAL", "45s")
	t.Setenv("BRIDGE_MAX_CLIENTS", "12")
	t.Setenv("BRIDGE_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("BRIDGE_TLS_KEY", "/tmp/key.pem")
	t.Setenv("BRIDGE_LOG_LEVEL", "debug")
	t.Setenv("BRIDGE_LOG_PATH", "/var/log/bridge.log")
	t.Setenv("BRIDGE_LOG_MAX_SIZE_MB", "512")
	t.Setenv("BRIDGE_LOG_MAX_BACKUPS", "4")
	t.Setenv("BRIDGE_LOG_MAX_AGE_DAYS", "2")
	t.Setenv("BRIDGE_LOG_COMPRESS", "false")
	t.Setenv("BRIDGE_ADMIN_TOKEN", "s3cret")
	t.Setenv("BRIDGE_ADMIN_AUTH_MODE", "mtls")
	t.Setenv("BRIDGE_TRACE_DUMP_WINDOW", "2m")
	t.Setenv("BRIDGE_TRACE_DUMP_BURST", "3")
	t.Setenv("BRIDGE_SERVICE_ID", "0x20")
	t.Setenv("BRIDGE_ENTITY_ID", "0x20")
	t.Setenv("BRIDGE_AUTHORITY", "gateway-ecu")
	t.Setenv("BRIDGE_ROLE", "server")
	t.Setenv("BRIDGE_QUEUE_PRIORITY_LEVELS", "5")
	t.Setenv("BRIDGE_AVAILABILITY_WAIT", "15s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.GRPCAddress != "127.0.0.1:9001" {
		t.Fatalf("unexpected grpc address: %q", cfg.GRPCAddress)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://example.com" || cfg.AllowedOrigins[1] != "https://demo.local" {
		t.Fatalf("unexpected allowed origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != 2048 {
		t.Fatalf("expected overridden max payload, got %d", cfg.MaxPayloadBytes)
	}
	if cfg.PingInterval.String() != "45s" {
		t.Fatalf("expected ping interval 45s, got %v", cfg.PingInterval)
	}
	if cfg.MaxClients != 12 {
		t.Fatalf("expected max clients 12, got %d", cfg.MaxClients)
	}
	if cfg.TLSCertPath != "/tmp/cert.pem" || cfg.TLSKeyPath != "/tmp/key.pem" {
		t.Fatalf("unexpected TLS paths cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Path != "/var/log/bridge.log" {
		t.Fatalf("unexpected log path %q", cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != 512 {
		t.Fatalf("expected log max size 512, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 4 {
		t.Fatalf("expected log max backups 4, got %d", cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxAgeDays != 2 {
		t.Fatalf("expected log max age 2, got %d", cfg.Logging.MaxAgeDays)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected log compression disabled")
	}
	if cfg.AdminToken != "s3cret" {
		t.Fatalf("expected overridden admin token, got %q", cfg.AdminToken)
	}
	if cfg.AdminAuthMode != "mtls" {
		t.Fatalf("expected overridden admin auth mode, got %q", cfg.AdminAuthMode)
	}
	if cfg.TraceDumpWindow != 2*time.Minute {
		t.Fatalf("expected trace dump window 2m, got %v", cfg.TraceDumpWindow)
	}
	if cfg.TraceDumpBurst != 3 {
		t.Fatalf("expected trace dump burst 3, got %d", cfg.TraceDumpBurst)
	}
	if cfg.Handler.ServiceID != 0x20 {
		t.Fatalf("expected overridden service id, got %#x", cfg.Handler.ServiceID)
	}
	if cfg.Handler.EntityID != 0x20 {
		t.Fatalf("expected overridden entity id, got %#x", cfg.Handler.EntityID)
	}
	if cfg.Handler.AuthorityName != "gateway-ecu" {
		t.Fatalf("unexpected authority name %q", cfg.Handler.AuthorityName)
	}
	if cfg.Handler.Role != "server" {
		t.Fatalf("expected overridden role server, got %q", cfg.Handler.Role)
	}
	if cfg.Handler.QueuePriorityLevels != 5 {
		t.Fatalf("expected overridden queue priority levels 5, got %d", cfg.Handler.QueuePriorityLevels)
	}
	if cfg.Handler.AvailabilityWait != 15*time.Second {
		t.Fatalf("expected overridden availability wait 15s, got %v", cfg.Handler.AvailabilityWait)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("BRIDGE_MAX_PAYLOAD_BYTES", "-5")
	t.Setenv("BRIDGE_PING_INTERVAL", "abc")
	t.Setenv("BRIDGE_MAX_CLIENTS", "-1")
	t.Setenv("BRIDGE_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("BRIDGE_TLS_KEY", "")
	t.Setenv("BRIDGE_LOG_MAX_SIZE_MB", "-1")
	t.Setenv("BRIDGE_LOG_MAX_BACKUPS", "-2")
	t.Setenv("BRIDGE_LOG_MAX_AGE_DAYS", "-3")
	t.Setenv("BRIDGE_LOG_COMPRESS", "notabool")
	t.Setenv("BRIDGE_TRACE_DUMP_WINDOW", "-")
	t.Setenv("BRIDGE_TRACE_DUMP_BURST", "0")
	t.Setenv("BRIDGE_QUEUE_PRIORITY_LEVELS", "0")
	t.Setenv("BRIDGE_AVAILABILITY_WAIT", "-1s")
	t.Setenv("BRIDGE_ROLE", "observer")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"BRIDGE_MAX_PAYLOAD_BYTES",
		"BRIDGE_PING_INTERVAL",
		"BRIDGE_MAX_CLIENTS",
		"BRIDGE_TLS_CERT",
		"BRIDGE_LOG_MAX_SIZE_MB",
		"BRIDGE_LOG_MAX_BACKUPS",
		"BRIDGE_LOG_MAX_AGE_DAYS",
		"BRIDGE_LOG_COMPRESS",
		"BRIDGE_TRACE_DUMP_WINDOW",
		"BRIDGE_TRACE_DUMP_BURST",
		"BRIDGE_QUEUE_PRIORITY_LEVELS",
		"BRIDGE_AVAILABILITY_WAIT",
		"BRIDGE_ROLE",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadIgnoresEmptyAllowedOrigins(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", " , ,https://ok.example, ")
	t.Setenv("BRIDGE_ROLE", "client")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://ok.example" {
		t.Fatalf("expected single cleaned origin, got %#v", cfg.AllowedOrigins)
	}
}

func TestLoadAllowsUnlimitedClients(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("BRIDGE_MAX_CLIENTS", "0")
	t.Setenv("BRIDGE_ROLE", "client")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.MaxClients != 0 {
		t.Fatalf("expected zero to disable limit, got %d", cfg.MaxClients)
	}
}

func TestLoadWithCustomTLSPair(t *testing.T) {
	clearBridgeEnv(t)
	t.Setenv("BRIDGE_ROLE", "client")
	certFile := createTempFile(t)
	keyFile := createTempFile(t)

	t.Setenv("BRIDGE_TLS_CERT", certFile)
	t.Setenv("BRIDGE_TLS_KEY", keyFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.TLSCertPath != certFile || cfg.TLSKeyPath != keyFile {
		t.Fatalf("unexpected TLS pair cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
}

func createTempFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "bridge-config-test-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	name := f.Name()
	f.Close()
	t.Cleanup(func() { _ = os.Remove(name) })
	return name
}
