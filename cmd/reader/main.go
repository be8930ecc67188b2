package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arcane-translator/arcane-reader/backend"
	"github.com/arcane-translator/arcane-reader/config"
	"github.com/arcane-translator/arcane-reader/navigator"
	"github.com/arcane-translator/arcane-reader/notify"
	"github.com/arcane-translator/arcane-reader/prefs"
	"github.com/arcane-translator/arcane-reader/progress"
	"github.com/arcane-translator/arcane-reader/sources"
	"github.com/arcane-translator/arcane-reader/storage"
)

// app is everything a command needs, built once in the root pre-run hook.
type app struct {
	cfg      *config.Config
	client   *backend.Client
	kv       storage.Store
	progress *progress.Store
	prefs    *prefs.Prefs
	sources  *sources.Registry
	nav      *navigator.Navigator
	notifier notify.Notifier

	in  *bufio.Reader
	out io.Writer

	metricsServer *http.Server
}

var (
	a app

	configPath  string
	apiURL      string
	storagePath string
	storageKind string
	metricsAddr string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "reader",
	Short:         "Read machine-translated web novels from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return a.setup(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		a.shutdown()
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&apiURL, "api-url", "", "Translation backend base URL")
	flags.StringVar(&storageKind, "storage", "", "Local storage driver: file or sqlite")
	flags.StringVar(&storagePath, "storage-path", "", "Local storage directory")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		a.shutdown()
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = apiURL
	}
	if flags.Changed("storage") {
		cfg.StorageDriver = strings.ToLower(storageKind)
	}
	if flags.Changed("storage-path") {
		cfg.StoragePath = storagePath
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := backend.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("initialising backend client: %w", err)
	}
	kv, err := storage.Open(cfg.StorageDriver, cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("opening local storage: %w", err)
	}

	a.cfg = cfg
	a.client = client
	a.kv = kv
	a.progress = progress.NewStore(kv)
	a.prefs = prefs.New(kv)
	a.sources = sources.NewRegistry(client)
	a.out = cmd.OutOrStdout()
	a.in = bufio.NewReader(cmd.InOrStdin())
	a.notifier = notify.NewWriter(cmd.ErrOrStderr())
	a.nav = navigator.New(client, a.progress,
		navigator.WithNotifier(a.notifier),
		navigator.WithMetrics(navigator.NewMetrics(client.Metrics.Registry)),
	)

	if cfg.MetricsAddr != "" {
		a.metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Debug("reader ready",
		slog.String("api", cfg.APIBaseURL),
		slog.String("storage", cfg.StorageDriver),
		slog.String("storage_path", cfg.StoragePath),
	)
	return nil
}

// shutdown waits for background prefetches, then releases storage and the
// metrics listener. It is safe to call more than once.
func (a *app) shutdown() {
	if a.nav != nil {
		a.nav.Wait()
		a.nav = nil
	}
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
		a.metricsServer = nil
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			slog.Error("close storage", slog.Any("error", err))
		}
		a.kv = nil
	}
}

// prompt prints label and reads one trimmed line. io.EOF ends interactive
// loops.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Logs go to stderr so they never interleave with the page on stdout.
func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
