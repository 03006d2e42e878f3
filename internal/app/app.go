package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Application owns the process lifecycle: the HTTP server, the sweep loop,
// and graceful shutdown on SIGINT/SIGTERM.
type Application struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *Container
}

func NewApplication(ctx context.Context) (*Application, error) {
	appCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	container, err := NewContainer(appCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	container.Logger().Info("application initialized")
	return &Application{
		ctx:       appCtx,
		cancel:    cancel,
		container: container,
	}, nil
}

// Run blocks until the context is cancelled or the HTTP server fails.
func (a *Application) Run() error {
	logger := a.container.Logger()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := a.container.Executor().Run(a.ctx); err != nil {
			logger.Error("sweep loop exited with error", zap.Error(err))
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", a.container.HTTPServer().Addr))
		if err := a.container.HTTPServer().ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-a.ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		a.cancel()
		<-sweepDone
		return err
	}

	<-sweepDone
	return nil
}

// Shutdown stops everything the container started.
func (a *Application) Shutdown() {
	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.container.Shutdown(ctx)
}
