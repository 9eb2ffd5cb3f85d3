package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/eventcore/internal/config"
	"github.com/nainya/eventcore/internal/logger"
	"github.com/nainya/eventcore/internal/metrics"
	"github.com/nainya/eventcore/internal/server"
	"github.com/nainya/eventcore/pkg/hlc"
	"github.com/nainya/eventcore/pkg/index"
	"github.com/nainya/eventcore/pkg/index/memory"
	"github.com/nainya/eventcore/pkg/layout"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clock exchange and observability servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg)
		},
	}

	return cmd
}

// timeSources maps configured source names to sources.
func timeSources(names []string) ([]hlc.TimeSource, error) {
	sources := make([]hlc.TimeSource, 0, len(names))
	for _, name := range names {
		switch name {
		case "system":
			sources = append(sources, hlc.SystemSource{})
		default:
			return nil, fmt.Errorf("unknown time source %q", name)
		}
	}
	return sources, nil
}

// Serve runs the servers described by cfg until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config) error {
	log := logger.InitGlobalLogger(logger.Config{
		Level:      cfg.Logger.Level,
		Pretty:     cfg.Logger.Pretty,
		WithCaller: cfg.Logger.Caller,
	})
	m := metrics.NewMetrics()

	interval, err := cfg.RefreshInterval()
	if err != nil {
		return err
	}
	sources, err := timeSources(cfg.Time.Sources)
	if err != nil {
		return err
	}
	provider := hlc.NewRefreshingProvider(sources,
		hlc.WithRefreshInterval(interval),
		hlc.WithLogger(log.Component("time")),
		hlc.WithRecorder(m),
	)
	provider.Start(ctx)
	defer provider.Stop()

	clock, err := hlc.NewClock(provider)
	if err != nil {
		return err
	}

	registry := layout.NewRegistry(
		layout.WithLogger(log.Component("layout")),
		layout.WithRecorder(m),
	)
	engine := memory.NewEngine(
		index.WithLogger(log.Component("index")),
		index.WithRecorder(m),
		index.WithRegistry(registry),
	)
	if err := engine.SetJournal(memory.NewJournal()); err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	srv, err := server.NewServer(clock, m, log)
	if err != nil {
		return err
	}
	grpcServer, _ := server.NewGRPCServer(srv,
		grpc.MaxRecvMsgSize(4*1024*1024),
	)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GrpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	ready := func() error {
		if s := engine.State(); s != index.Running {
			return fmt.Errorf("index engine %s", s)
		}
		_, err := provider.PhysicalTime()
		return err
	}
	obs := server.NewObservabilityServer(cfg.Server.HTTPPort, m, ready, log)

	log.LogServerStart(cfg.Server.GrpcPort, cfg.Server.HTTPPort, engine.Name())

	uptimeStop := make(chan struct{})
	defer close(uptimeStop)
	go m.RunUptime(10*time.Second, uptimeStop)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.LogServerReady(cfg.Server.GrpcPort)
		return grpcServer.Serve(lis)
	})
	g.Go(obs.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.LogServerShutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return obs.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
