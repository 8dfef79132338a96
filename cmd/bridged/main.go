// Command bridged runs a single SOME/IP<->uProtocol bridge handler: it
// loads configuration, wires the dispatch engine to the uProtocol-side
// websocket transport and SOME/IP interface, persists a dispatch trace, and
// exposes administrative HTTP and gRPC surfaces.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"someipbridge/internal/bridge"
	"someipbridge/internal/config"
	httpapi "someipbridge/internal/http"
	grpcsrv "someipbridge/internal/grpc"
	"someipbridge/internal/logging"
	"someipbridge/internal/router"
	"someipbridge/internal/someip"
	"someipbridge/internal/trace"
	"someipbridge/internal/transport"
	"someipbridge/internal/uprotocol"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger error:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	startedAt := time.Now()

	role := bridge.RoleClient
	if cfg.Handler.Role == "server" {
		role = bridge.RoleServer
	}

	hubOpts := []transport.HubOption{transport.WithPingInterval(cfg.PingInterval)}
	if cfg.WSAuthSecret != "" {
		wsAuth, err := newHMACWebsocketAuthenticator(cfg.WSAuthSecret)
		if err != nil {
			logger.Fatal("failed to configure websocket authenticator", logging.Error(err))
		}
		hubOpts = append(hubOpts, transport.WithAuthenticator(wsAuth))
	}
	hub := transport.NewHub(cfg.MaxPayloadBytes, cfg.MaxClients, logger, hubOpts...)

	localRouter := router.NewLocalRouter(router.NewByteTranslator(), hub)
	localRouter.SetStateRegistered(true)

	identity := bridge.Identity{
		Entity:    uprotocol.UEntity{ID: cfg.Handler.EntityID, Version: cfg.Handler.EntityVersion},
		Authority: uprotocol.UAuthority{Name: cfg.Handler.AuthorityName},
		Service:   someip.ServiceID(cfg.Handler.ServiceID),
		Instance:  someip.InstanceID(cfg.Handler.InstanceID),
		Role:      role,
	}
	handler := bridge.NewHandler(identity, someip.NewFake(), localRouter, logger)
	hub.SetOutboundSink(handler)

	traceDir := "trace"
	writer, _, err := trace.NewWriter(traceDir, fmt.Sprintf("%#x-%s", cfg.Handler.ServiceID, role.String()), time.Now)
	if err != nil {
		logger.Fatal("failed to open trace writer", logging.Error(err))
	}
	writer.SetHeaderMetadata(fmt.Sprintf("%#x", cfg.Handler.ServiceID), role.String())
	control := newBridgeControl(writer, handler)
	handler.WithRecorder(control)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleaner := trace.NewCleaner(traceDir, trace.RetentionPolicy{MaxBundles: 20, MaxAge: 7 * 24 * time.Hour}, logger)
	go cleaner.Run(ctx, time.Hour)

	limiter := httpapi.NewSlidingWindowLimiter(cfg.TraceDumpWindow, cfg.TraceDumpBurst, time.Now)

	httpSet := httpapi.NewHandlerSet(httpapi.Options{
		Logger:       logger,
		Handlers:     []httpapi.ReadinessProvider{handler},
		Uptime:       func() time.Duration { return time.Since(startedAt) },
		TraceDump:    control,
		TraceCleaner: cleaner.Stats,
		AdminToken:   cfg.AdminToken,
		RateLimiter:  limiter,
		Override:     control,
	})

	mux := http.NewServeMux()
	httpSet.Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)

	httpServer := &http.Server{Addr: cfg.Address, Handler: mux}

	grpcOpts, grpcCleanup, err := configureGRPCSecurity(cfg, logger)
	if err != nil {
		logger.Fatal("failed to configure gRPC security", logging.Error(err))
	}
	defer grpcCleanup()

	grpcServer := grpc.NewServer(grpcOpts...)
	grpcServer.RegisterService(&grpcsrv.ServiceDesc, grpcsrv.NewService(control))

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		logger.Fatal("failed to bind grpc listener", logging.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	certProvided := cfg.TLSCertPath != ""
	go func() {
		defer wg.Done()
		logger.Info("http admin surface listening", logging.String("url", listenerURL(cfg.Address, certProvided)))
		var err error
		if certProvided {
			err = httpServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited", logging.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		logger.Info("grpc trace control surface listening", logging.String("addr", cfg.GRPCAddress))
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Error("grpc server exited", logging.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown requested")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	handler.Quit()
	_ = writer.Close()
	cancel()
	wg.Wait()
}
