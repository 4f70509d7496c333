package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-emtrack/catalog"
	"go-emtrack/config"
	"go-emtrack/cronjobs"
	"go-emtrack/db"
	"go-emtrack/logging"
	"go-emtrack/metrics"
	"go-emtrack/routes"
	"go-emtrack/session"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "emtrack",
		Short: "Resource request fulfillment tracker for emergency response",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), envFile)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), envFile)
		},
	})
	root.AddCommand(newCatalogCmd())
	return root
}

func newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog utilities",
	}
	catalogCmd.AddCommand(&cobra.Command{
		Use:   "inspect <path or url>",
		Short: "Parse a catalog and print its locations, categories and source counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d locations, %d sources\n", len(cat.Locations), cat.SourceCount())
			for _, loc := range cat.Locations {
				fmt.Fprintf(out, "%s\n", loc.Name)
				for _, c := range loc.Categories {
					fmt.Fprintf(out, "  %-24s %d sources\n", c.Name, len(c.Sources))
				}
			}
			return nil
		},
	})
	return catalogCmd
}

func serve(ctx context.Context, envFile string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(envFile)

	log, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.EnvFileLoaded {
		log.Info("no .env file loaded, using process environment", zap.String("path", envFile))
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	local, err := db.OpenLocal(cfg.LocalDBPath, log)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer local.Close()

	// Init firestore; the remote archive is optional.
	opts := session.Options{
		Store:         local,
		Log:           log,
		Metrics:       m,
		AutosaveDelay: cfg.AutosaveDelay,
		SpeedKmh:      cfg.DefaultSpeedKmh,
	}
	firestoreClient, err := db.InitFirestore(ctx, cfg.FirebaseCredentials)
	switch {
	case errors.Is(err, db.ErrNoCredentials):
		log.Info("remote archive disabled")
	case err != nil:
		log.Error("failed to initialize Firestore, remote archive disabled", zap.Error(err))
	default:
		defer db.CloseFirestore() // Firestore client is closed on exit
		opts.Archive = db.NewArchive(firestoreClient, log)
	}

	sess := session.New(opts)

	// Restore before the first import so the catalog resolves against the
	// persisted active location instead of overwriting it.
	drifts, err := sess.Restore(ctx)
	if err != nil {
		log.Error("restore failed, starting blank", zap.Error(err))
	}
	for _, d := range drifts {
		log.Warn("restored scenario drift", zap.Error(d))
	}
	if _, err := sess.LoadCatalog(ctx, cfg.CatalogPath); err != nil {
		log.Warn("no catalog loaded", zap.Error(err))
	}

	// Initialize cron jobs
	c, err := cronjobs.InitCronJobs(sess, cfg.ETATickInterval, log)
	if err != nil {
		return err
	}

	r := routes.SetupRouter(routes.Deps{
		Session:   sess,
		Log:       log,
		Gatherer:  reg,
		ClientURL: cfg.ClientURL,
	})
	srv := &http.Server{Addr: cfg.Addr(), Handler: r}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("server failed", zap.Error(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-c.Stop().Done()

	if err := sess.Close(); err != nil {
		log.Error("final autosave failed", zap.Error(err))
	}
	return serveErr
}
