package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lamivi/internal/config"
	"lamivi/internal/httpapi"
	"lamivi/internal/manager"
	"lamivi/pkg/types"
)

// version is stamped by the build (-ldflags "-X main.version=...").
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lamivid:", err)
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	envFile    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "lamivid",
		Short:         "HTTP bridge to a LaMa inpainting worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading LAMIVI_* variables")
	root.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	root.PersistentFlags().String("log-format", "", "Log format: console|json")
	root.PersistentFlags().String("log-file", "", "Also write JSON logs to this file, rotated")

	root.AddCommand(newServeCmd(opts), newCandidatesCmd(opts), newVersionCmd())
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inpainting API",
		Example: "  lamivid serve --worker-script ./lama_worker.py\n" +
			"  lamivid serve --config lamivi.yaml --device cuda --warmup",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	addBridgeFlags(cmd)
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address, e.g. :8765")
	f.Duration("request-timeout", 0, "Per-request worker deadline")
	f.Int("max-pending", 0, "Maximum in-flight worker requests before 429")
	f.Int("max-body-mb", 0, "Maximum request body size in MiB")
	f.Duration("inpaint-timeout", 0, "Overall deadline of /api/inpaint (0 disables)")
	f.String("cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	f.Bool("warmup", false, "Start the worker at boot instead of on first request")
	return cmd
}

func newCandidatesCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List the Python interpreters a worker spawn would try",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			m := manager.NewWithConfig(bridgeConfig(cfg, nil))
			defer m.Close()
			report := m.SanityCheck()
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			for i, c := range report.Candidates {
				fmt.Fprintf(w, "%d. %s\n", i+1, c)
			}
			if report.Error != "" {
				fmt.Fprintln(w, "problem:", report.Error)
			}
			return nil
		},
	}
	addBridgeFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "lamivid", version)
		},
	}
}

// addBridgeFlags registers the flags that shape worker discovery and spawn.
func addBridgeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("python", "", `Python interpreter override, e.g. "py -3.11" or a venv python`)
	f.String("worker-script", "", "Path of the inpainting worker script")
	f.String("work-dir", "", "Worker working directory, also searched for virtualenvs")
	f.String("device", "", "Initial device: auto|cpu|cuda")
	f.Duration("boot-timeout", 0, "How long a worker may take to report ready")
	f.Duration("stop-grace", 0, "How long a stopped worker may take to exit before it is killed")
}

// loadConfig resolves defaults, config file, environment and flags, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg := config.Defaults()
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return cfg, err
	}
	if opts.configPath != "" {
		fileCfg, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", opts.configPath, err)
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := config.FromEnv(nil)
	if err != nil {
		return cfg, err
	}
	cfg = cfg.Merge(envCfg)
	cfg = applyFlags(cmd, cfg)
	return cfg, cfg.Validate()
}

// applyFlags overlays only the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	dur := func(name string, dst *int) {
		if f.Changed(name) {
			d, _ := f.GetDuration(name)
			*dst = int(d / time.Millisecond)
		}
	}
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("log-file", &cfg.LogFile)
	str("python", &cfg.Python)
	str("worker-script", &cfg.WorkerScript)
	str("work-dir", &cfg.WorkDir)
	str("device", &cfg.Device)
	dur("boot-timeout", &cfg.BootTimeoutMS)
	dur("stop-grace", &cfg.StopGraceMS)
	str("addr", &cfg.Addr)
	dur("request-timeout", &cfg.RequestTimeoutMS)
	num("max-pending", &cfg.MaxPending)
	num("max-body-mb", &cfg.MaxBodyMB)
	dur("inpaint-timeout", &cfg.InpaintTimeoutMS)
	if f.Changed("cors-origins") {
		v, _ := f.GetString("cors-origins")
		cfg.CORSOrigins = splitCSV(v)
	}
	if f.Changed("warmup") {
		cfg.Warmup, _ = f.GetBool("warmup")
	}
	return cfg
}

func bridgeConfig(cfg config.Config, logger *zerolog.Logger) manager.ManagerConfig {
	device, _ := types.ParseDevice(cfg.Device)
	return manager.ManagerConfig{
		Python:         cfg.Python,
		WorkerScript:   cfg.WorkerScript,
		WorkerArgs:     cfg.WorkerArgs,
		WorkDir:        cfg.WorkDir,
		Device:         device,
		RequestTimeout: cfg.RequestTimeout(),
		BootTimeout:    cfg.BootTimeout(),
		StopGrace:      cfg.StopGrace(),
		MaxPending:     cfg.MaxPending,
		Logger:         logger,
	}
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := manager.NewWithConfig(bridgeConfig(cfg, &logger))
	defer m.Close()
	if r := m.SanityCheck(); r.Error != "" {
		logger.Warn().Str("problem", r.Error).Strs("candidates", r.Candidates).Msg("worker pre-flight check failed")
	}

	httpapi.SetLogger(logger)
	httpapi.SetRequestLogLevel(requestLogLevel(cfg.LogLevel))
	httpapi.SetMaxBodyBytes(int64(cfg.MaxBodyMB) << 20)
	httpapi.SetInpaintTimeout(cfg.InpaintTimeout())
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.Start(ctx, cfg.Warmup)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("device", cfg.Device).Str("worker_script", cfg.WorkerScript).Msg("lamivid listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return m.Close()
}

// requestLogLevel maps the process log level onto per-request logging.
func requestLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return "debug"
	case "error", "fatal", "panic":
		return "error"
	default:
		return "info"
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
