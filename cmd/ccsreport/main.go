// ccs-report exports the open build-policy alerts from the CSPM API and
// prints each alert with the identifier of the policy that raised it.
//
// Usage:
//
//	API_ENDPOINT=https://api.prismacloud.io API_USERNAME=... API_PASSWORD=... ccs-report
//	ccs-report --days 30 -o json --out-dir ./reports
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/ccs-report/internal/application"
	"github.com/bryanwahyu/ccs-report/internal/application/reports"
	"github.com/bryanwahyu/ccs-report/internal/config"
	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
	"github.com/bryanwahyu/ccs-report/internal/infra/prisma"
	"github.com/bryanwahyu/ccs-report/internal/infra/storage"
	"github.com/bryanwahyu/ccs-report/internal/report"
	"github.com/bryanwahyu/ccs-report/internal/version"
)

// Exit codes.
const (
	exitOK             = 0
	exitError          = 1
	exitConfiguration  = 2
	exitAuthentication = 3
	exitUpstream       = 4
	exitFormat         = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

type options struct {
	configPath   string
	output       string
	outDir       string
	days         int
	maxAttempts  int
	pollInterval time.Duration
	renewEvery   int
	logLevel     string
	logFormat    string
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	cmd := newRootCmd(stdout, stderr, getenv)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func newRootCmd(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ccs-report",
		Short: "Correlate open build-policy alerts with their policy IDs",
		Long: `ccs-report logs in to the CSPM API, snapshots the build policies,
exports the alerts of the last days as CSV and prints every open config
alert together with the identifier of the build policy that raised it.

Credentials come from API_ENDPOINT, API_USERNAME and API_PASSWORD.`,
		Version:       version.Full(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, getenv)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			format, err := report.ParseFormat(cfg.Output.Format)
			if err != nil {
				return fmt.Errorf("%w: %v", alerts.ErrConfiguration, err)
			}
			return run(cmd.Context(), cfg, format, stdout, newLogger(stderr, cfg.Log.Level, cfg.Log.Format))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to YAML config (default $CONFIG_PATH or ./"+config.DefaultPath+")")
	f.StringVarP(&opts.output, "output", "o", "text", "Report format: text, csv, json")
	f.StringVar(&opts.outDir, "out-dir", ".", "Directory for the policy snapshot and alert export")
	f.IntVar(&opts.days, "days", 7, "Export alerts raised in the last N days")
	f.IntVar(&opts.maxAttempts, "max-attempts", 20, "Status checks before giving up on the export job")
	f.DurationVar(&opts.pollInterval, "poll-interval", 2*time.Second, "Delay between status checks")
	f.IntVar(&opts.renewEvery, "renew-every", 4, "Renew the token after every N status checks (0 disables)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "json", "Log format (json, console)")
	return cmd
}

// applyFlags lets explicitly set flags override file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) {
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Output.Format = opts.output
	}
	if f.Changed("out-dir") {
		cfg.Output.Dir = opts.outDir
	}
	if f.Changed("days") {
		cfg.Export.Days = opts.days
	}
	if f.Changed("max-attempts") {
		cfg.Export.MaxAttempts = opts.maxAttempts
	}
	if f.Changed("poll-interval") {
		cfg.Export.PollInterval = opts.pollInterval
	}
	if f.Changed("renew-every") {
		cfg.Export.RenewEvery = opts.renewEvery
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
}

func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("version", version.Version).
		Logger()
}

func run(ctx context.Context, cfg *config.Config, format report.Format, stdout io.Writer, logger zerolog.Logger) error {
	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()
	logger.Info().Str("endpoint", cfg.API.Endpoint).Msg("Get CCS alerts")

	stats := &prisma.Stats{}
	httpClient := prisma.NewHTTPClient(prisma.HTTPConfig{
		Timeout:            cfg.API.Timeout,
		InsecureSkipVerify: cfg.API.InsecureSkipVerify,
	}, logger, stats)
	api := prisma.New(cfg.API.Endpoint, httpClient, logger)

	store := storage.NewLocal(cfg.Output.Dir, logger)
	if m := cfg.Storage.Minio; m.Enabled {
		mirror, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  m.Endpoint,
			Region:    m.Region,
			Bucket:    m.Bucket,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
		})
		if err != nil {
			return err
		}
		store.Mirror = mirror
		store.KeyPrefix = path.Join(m.Prefix, runID)
	}

	svc := reports.New(api, store, application.SystemClock{}, logger)
	res, err := svc.Run(ctx, reports.Settings{
		RunID: runID,
		Account: reports.Account{
			Endpoint: cfg.API.Endpoint,
			Username: cfg.API.Username,
			Password: cfg.API.Password,
		},
		TimeRange: alerts.LastDays(cfg.Export.Days),
		Poll: reports.PollPolicy{
			MaxAttempts: cfg.Export.MaxAttempts,
			Interval:    cfg.Export.PollInterval,
			RenewEvery:  cfg.Export.RenewEvery,
		},
	})

	s := stats.Snapshot()
	logger.Info().
		Uint64("requests", s.Requests).
		Uint64("failed_requests", s.Failed).
		Dur("duration", res.Duration).
		Str("status", string(res.Status)).
		Msg("Done")
	if err != nil {
		return err
	}

	if res.Status != alerts.JobReady {
		return nil
	}
	return report.Write(stdout, format, res.Rows)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, alerts.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, alerts.ErrAuthentication):
		return exitAuthentication
	case errors.Is(err, alerts.ErrUpstream):
		return exitUpstream
	case errors.Is(err, alerts.ErrFormat):
		return exitFormat
	default:
		return exitError
	}
}
