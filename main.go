package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adwatch/backend/internal/app"
	"github.com/adwatch/backend/internal/config"
	"github.com/adwatch/backend/internal/logger"
	"github.com/adwatch/backend/internal/seed"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime - config and logger shared by every subcommand
type runtime struct {
	cfg config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "adwatch",
		Short:         "Ad campaign anomaly detection and alert lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()
			rt.cfg = config.Load()
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			log, err := logger.New(rt.cfg.Log)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the periodic detection scheduler",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "scan",
			Short: "Run one detection cycle and print the report",
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.scan(cmd.Context(), cmd)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the store schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := app.OpenStore(cmd.Context(), rt.cfg)
				if err != nil {
					return rt.fail("migrate", err)
				}
				store.Close()
				rt.log.Info("schema ready", zap.String("driver", rt.cfg.Store.Driver))
				return nil
			},
		},
		newSeedCommand(rt),
	)

	root.SetContext(context.Background())
	return root
}

func newSeedCommand(rt *runtime) *cobra.Command {
	var fixturePath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo campaigns and metric history",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := seed.DefaultFixture()
			if fixturePath != "" {
				fx, err = seed.LoadFixtureFile(fixturePath)
			}
			if err != nil {
				return rt.fail("seed", err)
			}

			store, err := app.OpenStore(cmd.Context(), rt.cfg)
			if err != nil {
				return rt.fail("seed", err)
			}
			defer store.Close()

			sum, err := seed.NewSeeder(store, rt.log.Named("seed")).Seed(cmd.Context(), fx)
			if err != nil {
				return rt.fail("seed", err)
			}
			rt.log.Info("seed complete",
				zap.Int("campaigns", sum.Campaigns),
				zap.Int("skipped", sum.Skipped),
				zap.Int("observations", sum.Observations))
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "YAML fixture file (defaults to the embedded demo dataset)")
	return cmd
}

func (rt *runtime) open(ctx context.Context) (*app.App, error) {
	store, err := app.OpenStore(ctx, rt.cfg)
	if err != nil {
		return nil, err
	}
	events, err := app.OpenEvents(rt.cfg.Events, rt.log)
	if err != nil {
		store.Close()
		return nil, err
	}
	a, err := app.New(rt.cfg, store, events, rt.log)
	if err != nil {
		events.Close()
		store.Close()
		return nil, err
	}
	return a, nil
}

func (rt *runtime) scan(ctx context.Context, cmd *cobra.Command) error {
	a, err := rt.open(ctx)
	if err != nil {
		return rt.fail("scan", err)
	}
	defer a.Close()

	report, err := a.Scanner.RunDetectionCycle(ctx)
	if err != nil {
		return rt.fail("scan", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// serve
// Flow:
//  1. open store + events, build the engine
//  2. start the detection scheduler (DETECTION_ENABLED)
//  3. serve HTTP until SIGINT/SIGTERM, then drain within 10s
func (rt *runtime) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := rt.open(ctx)
	if err != nil {
		return rt.fail("serve", err)
	}
	defer a.Close()

	schedulerDone := make(chan struct{})
	if rt.cfg.Detection.Enabled {
		go func() {
			defer close(schedulerDone)
			a.Scanner.Run(ctx, rt.cfg.Detection.Interval)
		}()
	} else {
		close(schedulerDone)
		rt.log.Info("detection scheduler disabled")
	}

	srv := &http.Server{
		Addr:              ":" + rt.cfg.Server.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("store", rt.cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		rt.log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			stop()
			<-schedulerDone
			return rt.fail("serve", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.log.Warn("http shutdown", zap.Error(err))
	}
	<-schedulerDone
	return nil
}

func (rt *runtime) fail(op string, err error) error {
	rt.log.Error(op+" failed", zap.Error(err))
	return err
}
