package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/app"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/async"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/server"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/source/local"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("costreportsd.exit", "error", err)
		if errors.Is(err, common.ErrMissingCredentials) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	logger := common.NewLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("costreportsd.close_failed", "error", err)
		}
	}()

	// catalog may predate this process or have been lost
	if n, err := a.Orchestrator.Reindex(ctx); err != nil {
		logger.Warn("costreportsd.reindex_failed", "error", err)
	} else {
		logger.Info("costreportsd.reindexed", "reports", n)
	}

	health := server.NewHealth(logger)
	sched := async.NewScheduler(a.Run, logger,
		async.WithInterval(cfg.Schedule.Interval),
		async.WithRunOnStart(cfg.Schedule.RunOnStart),
		async.WithOnResult(func(res entity.RunResult) { health.Observe(res) }),
	)

	httpSrv := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewRouter(server.Deps{
			Reports:  a.Reports,
			Renderer: a.Renderer,
			Catalog:  a.Catalog,
			Exporter: a.Exporter,
			Runner:   sched,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	grpcSrv := server.NewGRPCServer(health, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("costreportsd.http.listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("costreportsd.grpc.listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})

	sched.Start()

	if cfg.Schedule.Watch && cfg.Source.Kind == common.SourceKindLocal {
		g.Go(func() error {
			return watchSource(gctx, cfg, sched, logger)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("costreportsd.shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		health.Shutdown()
		sched.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// watchSource triggers a run whenever a PDF under the local source changes.
func watchSource(ctx context.Context, cfg *common.Config, sched *async.Scheduler, logger *slog.Logger) error {
	events, errs, err := local.Watch(ctx, local.WatchConfig{
		Roots:    []string{cfg.Source.LocalDir},
		Debounce: cfg.Schedule.WatchDebounce,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("costreportsd.watch.change", "path", p)
			sched.Trigger("fs-change")
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("costreportsd.watch.error", "error", err)
		}
	}
}
