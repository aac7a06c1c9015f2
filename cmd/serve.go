package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/labsync/internal/api"
	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/monitoring"
)

var servePort int

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the stage chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		handler := api.New(api.Deps{
			Intake:      env.Intake,
			Extraction:  env.Extraction,
			Design:      env.Design,
			Allocations: env.Allocations,
			Reader:      env.Store,
			Stats:       env.Collector,
		}, api.Config{CORSOrigins: cfg.Server.CORSOrigins})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		consumer := chain.NewConsumer(env.Queue.Tasks(), env.Handlers(),
			chain.WithWorkers(cfg.Pipeline.Workers),
			chain.WithDeadLetters(env.Store),
			chain.WithMaxRetries(cfg.Pipeline.DLQMaxRetries),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return consumer.Run(gctx) })

		if cfg.Pipeline.SweepIntervalSecs > 0 {
			interval := time.Duration(cfg.Pipeline.SweepIntervalSecs) * time.Second
			g.Go(func() error {
				runSweeper(gctx, env, interval, cfg.Pipeline.SweepLimit)
				return nil
			})
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(env.Collector, monitoring.NewAlerter(cfg.Monitoring),
				time.Duration(cfg.Monitoring.CheckIntervalSecs)*time.Second)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

// runSweeper processes missed work every interval until ctx ends.
func runSweeper(ctx context.Context, env *pipelineEnv, interval time.Duration, limit int) {
	log := zap.L().With(zap.String("component", "sweeper"))
	log.Info("starting sweeper", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
			res, err := env.Sweeper.ProcessPending(ctx, limit)
			if err != nil {
				log.Error("sweep failed", zap.Error(err))
				continue
			}
			if res.Extracted+res.Designed+res.Failed > 0 {
				log.Info("sweep complete",
					zap.Int("extracted", res.Extracted),
					zap.Int("designed", res.Designed),
					zap.Int("failed", res.Failed),
				)
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
