package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/cratecheck/internal/alert"
	"github.com/hazz-dev/cratecheck/internal/checker"
	"github.com/hazz-dev/cratecheck/internal/config"
	"github.com/hazz-dev/cratecheck/internal/display"
	"github.com/hazz-dev/cratecheck/internal/metrics"
	"github.com/hazz-dev/cratecheck/internal/scheduler"
	"github.com/hazz-dev/cratecheck/internal/server"
	"github.com/hazz-dev/cratecheck/internal/storage"
	"github.com/hazz-dev/cratecheck/internal/version"
)

const defaultConfigFile = "cratecheck.yml"

var (
	cfgFile string
	verbose bool

	checkTimeout time.Duration
	checkColor   string
	checkRecord  bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cratecheck",
		Short:        "Check whether crate names are free on the registry",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(versionCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(serveCmd())

	return root
}

// loadConfig reads the config file. A missing default config file is not an
// error; built-in defaults are used instead.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check NAME...",
		Short: "Check whether one or more crate names are available",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
	cmd.Flags().DurationVar(&checkTimeout, "timeout", 0, "lookup timeout (default from config, 5s)")
	cmd.Flags().StringVar(&checkColor, "color", "", "color mode: auto, always, or never (default from config)")
	cmd.Flags().BoolVar(&checkRecord, "record", false, "record results in the history database")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mode := cfg.Display.Color
	if checkColor != "" {
		if !config.ValidColorMode(checkColor) {
			return fmt.Errorf("invalid --color %q (must be auto, always, or never)", checkColor)
		}
		mode = checkColor
	}
	formatter, err := display.ForMode(mode)
	if err != nil {
		return err
	}

	c, err := checker.New(cfg.Registry, slog.Default())
	if err != nil {
		return fmt.Errorf("creating checker: %w", err)
	}

	var rec resultRecorder
	if checkRecord {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		rec = db
	}

	return executeCheck(cmd, c, args, checkTimeout, formatter, rec)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last recorded result for each name",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	formatter, err := display.ForMode(cfg.Display.Color)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db, formatter)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch configured names and serve the lookup API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "registry", cfg.Registry.URL, "names", len(cfg.Watch.Names))

	// 2. Open SQLite
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// 3. Build checker and metrics
	c, err := checker.New(cfg.Registry, logger)
	if err != nil {
		return fmt.Errorf("creating checker: %w", err)
	}
	recorder := metrics.New()

	// 4. Build alerter (if configured)
	var alerter *alert.Alerter
	if cfg.Alerts.Webhook.URL != "" {
		alerter = alert.New(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Cooldown.Duration, logger)
	}

	// 5. Build scheduler
	sched := scheduler.New(cfg.Watch.Names, cfg.Watch.Interval.Duration, db, c, logger)
	sched.SetOnResult(func(r checker.Result, prev *checker.Availability) {
		recorder.Observe(r)
		if alerter != nil {
			alerter.Notify(r, prev)
		}
	})

	// 6. Build API server
	apiServer := server.New(db, c, cfg.Watch.Names, recorder, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 8. Start scheduler
	sched.Start(ctx)
	logger.Info("scheduler started", "names", len(cfg.Watch.Names), "interval", cfg.Watch.Interval.Duration)

	// 9. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 10. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 11. Graceful shutdown
	sched.Wait()
	if alerter != nil {
		alerter.Wait()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
