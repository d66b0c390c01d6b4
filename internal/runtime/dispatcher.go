package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

type ServiceCtx struct {
	deps            *dependencies
	depOptions      []DependencyOption
	shutdownChannel chan os.Signal
	serverCtx       context.Context
	serverStopFunc  context.CancelFunc
	serverReady     chan struct{}
	listenAddr      string
}

func New(opts ...ServiceOption) *ServiceCtx {
	ctx := &ServiceCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}

	for _, opt := range opts {
		opt(ctx)
	}

	return ctx
}

func (c *ServiceCtx) Run() {
	if err := c.build(); err != nil {
		log.Fatalf("failed to build service: %v", err)
	}

	c.startService()
	c.startPurger()
	c.shutdownHook()

	select {
	case <-c.serverCtx.Done():
	case <-c.shutdownChannel:
		defer close(c.shutdownChannel)
	}

	c.shutdown()
}

func (c *ServiceCtx) build() error {
	c.serverCtx, c.serverStopFunc = context.WithCancel(context.Background())

	var err error

	c.deps, err = initializeDependencies(c.serverCtx, c.depOptions...)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	return nil
}

func (c *ServiceCtx) startService() {
	listener, err := net.Listen("tcp", c.deps.infra.httpServer.Addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", c.deps.infra.httpServer.Addr, err)
	}

	c.listenAddr = listener.Addr().String()

	go func() {
		c.deps.infra.logger.Info().
			Str("address", c.listenAddr).
			Str("backend", c.deps.config.Repository.Backend).
			Bool("resource", c.deps.resourceHandler != nil).
			Msg("starting the HTTP server")

		if c.serverReady != nil {
			close(c.serverReady)
		}

		if err := c.deps.infra.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.deps.infra.logger.Error().Err(err).Msg("HTTP server error")
			c.serverStopFunc()
		}
	}()
}

func (c *ServiceCtx) startPurger() {
	go c.deps.services.purger.Run(c.serverCtx)
}

func (c *ServiceCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *ServiceCtx) shutdown() {
	c.deps.infra.logger.Info().Msg("shutting down service...")

	signal.Stop(c.shutdownChannel)
	c.serverStopFunc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.deps.config.HTTPServer.ShutdownTimeout)
	defer cancel()

	go func() {
		<-shutdownCtx.Done()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			c.deps.infra.logger.Error().Msg("graceful shutdown timed out.. forcing exit.")
			os.Exit(1)
		}
	}()

	c.cleanup(shutdownCtx)

	c.deps.infra.logger.Info().Msg("service shutdown complete")
}

// WaitForServer blocks until the listener accepts connections when
// WithWaitingForServer was given.
func (c *ServiceCtx) WaitForServer() {
	if c.serverReady != nil {
		<-c.serverReady
	}
}

// Addr is the address the HTTP server listens on once it has started.
func (c *ServiceCtx) Addr() string {
	return c.listenAddr
}

func (c *ServiceCtx) cleanup(shutdownCtx context.Context) {
	c.deps.infra.logger.Info().Msg("cleaning up resources...")

	// The server drains before the stores it depends on close.
	if shutdownServer, ok := c.deps.cleanupFuncs["http_server"]; ok {
		if err := shutdownServer(shutdownCtx); err != nil {
			c.logCleanupError("http_server", err)
		}
	}

	for resource, cleanupFn := range c.deps.cleanupFuncs {
		if resource == "http_server" {
			continue
		}

		if err := cleanupFn(shutdownCtx); err != nil {
			c.logCleanupError(resource, err)
		}
	}

	c.deps.infra.logger.Info().Msg("cleanup completed")
}

func (c *ServiceCtx) logCleanupError(resource string, err error) {
	c.deps.infra.logger.Error().
		Err(err).
		Str("resource", resource).
		Msg("failed to shutdown the resource gracefully")
}
