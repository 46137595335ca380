package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ShutdownTimeout bounds how long in-flight requests get after a signal.
const ShutdownTimeout = 10 * time.Second

// NewServer builds the HTTP server for the runtime.
func (rt *Runtime) NewServer() *http.Server {
	return &http.Server{
		Addr:              rt.Env.Network.HttpAddr,
		Handler:           rt.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
		ErrorLog:          slog.NewLogLogger(rt.logger.Handler(), slog.LevelWarn),
	}
}

// RunServer serves until SIGINT or SIGTERM.
func RunServer(server *http.Server) error {
	if server == nil {
		return errors.New("nil http server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, server)
}

// Serve runs server until ctx is done, then drains in-flight requests for up
// to ShutdownTimeout before closing the remaining connections.
func Serve(ctx context.Context, server *http.Server) error {
	if server == nil {
		return errors.New("nil http server")
	}

	served := make(chan error, 1)
	go func() { served <- server.ListenAndServe() }()

	slog.Info("server listening", "address", server.Addr)

	select {
	case err := <-served:
		return listenError(err)
	case <-ctx.Done():
	}

	slog.Info("server draining", "address", server.Addr)

	drainCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(drainCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown server: %w", err)
		}

		slog.Warn("drain timed out, closing connections", "address", server.Addr)
		if err := server.Close(); err != nil {
			slog.Error("close server", "address", server.Addr, "error", err)
		}
	}

	if err := listenError(<-served); err != nil {
		return err
	}

	slog.Info("server stopped", "address", server.Addr)

	return nil
}

func listenError(err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return fmt.Errorf("listen and serve: %w", err)
}
