package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/libero/internal/adapters/http/api"
	"github.com/okian/libero/internal/adapters/http/swagger"
	service "github.com/okian/libero/internal/app"
	"github.com/okian/libero/internal/config"
	"github.com/okian/libero/pkg/logger"
	"github.com/okian/libero/pkg/metrics"
	"github.com/okian/libero/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	DB   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Start the match recorder HTTP API.

Configuration is layered: defaults, then the YAML file named by --config or
$LIBERO_CONFIG, then LIBERO_* environment variables, then the flags below.

Examples:
  libero serve
  libero serve --addr :8080 --db ./libero.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadFile(ctx, opts.configPath())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if opts.Addr != "" {
				cfg.Addr = opts.Addr
			}
			if opts.DB != "" {
				cfg.DBPath = opts.DB
			}
			if err := logger.Init(
				logger.WithWriter(cmd.ErrOrStderr()),
				logger.WithFormat(cfg.LogFormat),
				logger.WithLevel(cfg.LogLevel),
			); err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize logging", err)
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to listen", err)
			}
			return Serve(ctx, cfg, ln)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite ledger database (overrides config)")

	return cmd
}

func (o *RootOptions) configPath() string {
	if o.Config != "" {
		return o.Config
	}
	return os.Getenv(config.EnvFile)
}

// Serve runs the service and HTTP API on ln until ctx is cancelled, then
// shuts both down within cfg.ShutdownTimeout.
func Serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	log := logger.Get()

	rules, err := cfg.Rules()
	if err != nil {
		_ = ln.Close()
		return WrapExitError(ExitCommandError, "invalid scoring rules", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, "libero", cfg.OTelEndpoint)
	if err != nil {
		_ = ln.Close()
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithDBPath(cfg.DBPath),
		service.WithRules(rules),
		service.WithAggregateTimeout(cfg.AggregateTimeout),
	)
	if err := svc.Start(ctx); err != nil {
		_ = ln.Close()
		return WrapExitError(ExitCommandError, "failed to start service", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	srv := &http.Server{
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		updateSystemMetrics(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
			errs = append(errs, err)
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn(ctx, "tracing shutdown failed", logger.Error(err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// updateSystemMetrics refreshes the runtime gauges until ctx is done.
func updateSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		metrics.UpdateSystemMemoryUsage(m.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		if m.NumGC > 0 {
			metrics.RecordSystemGCPauseTime(float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
