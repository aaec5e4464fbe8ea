package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// DefaultShutdownTimeout bounds how long ServeHTTP waits for in-flight
// requests once its context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// ServeHTTP serves h on l until ctx is cancelled. On cancellation the
// listener is closed and in-flight requests are given up to grace to
// complete before their connections are forcibly closed.
func ServeHTTP(ctx context.Context, l net.Listener, h http.Handler, grace time.Duration) error {
	srv := &http.Server{Handler: h}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelFn := context.WithTimeout(context.Background(), grace)
	defer cancelFn()

	var err error
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		_ = srv.Close()
		err = fmt.Errorf("graceful shutdown: %w", shutdownErr)
	}

	if sErr := <-serveErr; !errors.Is(sErr, http.ErrServerClosed) && err == nil {
		err = sErr
	}

	return err
}
