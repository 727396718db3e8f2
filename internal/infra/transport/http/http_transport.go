package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mkrupp/lostbuddy/internal/infra/logging"
)

// HTTPTransportConfig contains configuration parameters for HTTP servers.
type HTTPTransportConfig struct {
	// ServerAddr is the network address to listen on
	ServerAddr string `env:"SERVER_ADDR" env-default:":8080" yaml:"server_addr"`

	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" env-default:"5s" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" env-default:"5s" yaml:"read_timeout"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" env-default:"5s" yaml:"write_timeout"`

	// ShutdownTimeout bounds how long in-flight requests may finish after ctx is done
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"shutdown_timeout"`
}

// Handler wraps handler with the standard middleware chain: tracing,
// request logging and panic recovery, outermost first.
func Handler(handler http.Handler) http.Handler {
	log := logging.GetLogger("infra.transport.http")

	handler = RescueingMiddleware(handler, log)
	handler = LoggingMiddleware(handler, log)
	handler = TracingMiddleware(handler)

	return handler
}

// ListenAndServe serves handler wrapped in the standard middleware chain
// until ctx is done, then shuts down gracefully.
// Returns an error if the server fails to start or encounters an error while running.
func ListenAndServe(ctx context.Context, handler http.Handler, cfg HTTPTransportConfig) error {
	sock, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return Serve(ctx, sock, handler, cfg)
}

// Serve is ListenAndServe on an existing listener. The listener is closed
// on return.
func Serve(ctx context.Context, sock net.Listener, handler http.Handler, cfg HTTPTransportConfig) (err error) {
	log := logging.GetLogger("infra.transport.http")

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	//nolint:exhaustruct
	server := &http.Server{
		Handler:           Handler(handler),
		ErrorLog:          logging.GetLogLogger(log, logging.LevelError),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		done <- server.Shutdown(shutdownCtx)
	}()

	log.InfoContext(ctx, "listening", "addr", sock.Addr().String())

	if err := server.Serve(sock); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
