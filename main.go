// Command volume-backup archives the mounted volumes of every running
// container through ephemeral helper containers, optionally stopping each
// container first for a consistent snapshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"volume-backup/internal/archiver"
	"volume-backup/internal/config"
	"volume-backup/internal/docker"
	"volume-backup/internal/fleet"
	"volume-backup/internal/gc"
	"volume-backup/internal/logger"
	"volume-backup/internal/orchestrator"
	"volume-backup/internal/store"
	"volume-backup/internal/webhook"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// errRunFailed signals a completed run with recorded failures; it maps to a
// non-zero exit without an extra error print (the report already logged).
var errRunFailed = errors.New("run finished with failures")

func main() {
	defer logger.Close()
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		logger.Close()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg          config.Config
		retentionStr string
	)

	rootCmd := &cobra.Command{
		Use:   "volume-backup",
		Short: "Back up all mounted volumes of running containers",
		Long: `volume-backup discovers the currently running containers, extracts their
bind and volume mounts, and archives each eligible mount to a local
directory through a short-lived helper container.

With --stop-start each container is stopped before its backup and
restarted afterwards, trading downtime for a consistent snapshot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Configure(cfg.LogLevel)

			retention, err := config.ParseRetention(retentionStr)
			if err != nil {
				return err
			}
			cfg.Retention = retention

			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), &cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVarP(&cfg.StopStart, "stop-start", "s", false, "stop each container before backup and restart it afterwards")
	flags.StringVarP(&cfg.HelperImage, "image", "i", config.DefaultHelperImage, "image used for the archive helper containers")
	flags.StringVarP(&cfg.LogLevel, "loglevel", "l", config.DefaultLogLevel, "log verbosity (debug, info, warn, error)")
	flags.StringVarP(&cfg.DockerPath, "docker", "d", config.DefaultDockerPath, "path to the container runtime executable")
	flags.StringVarP(&cfg.OutputDir, "output", "o", config.DefaultOutputDir, "directory the archives are written to")
	flags.DurationVar(&cfg.CallTimeout, "timeout", config.DefaultCallTimeout, "timeout for each runtime and helper invocation")
	flags.StringVar(&retentionStr, "retention", "", "prune archives older than this after the run (e.g. 72h, 7d; empty disables)")
	flags.BoolVar(&cfg.GCDryRun, "gc-dry-run", false, "log what pruning would delete without deleting")
	flags.StringVar(&cfg.WebhookURL, "webhook-url", "", "POST the JSON run report to this URL after the run")
	flags.StringVar(&cfg.WebhookSecret, "webhook-secret", "", "HMAC-SHA256 secret for signing the run report")

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("volume-backup %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.Log.Info("Volume backup starting",
		zap.String("version", Version),
		zap.Bool("stopStart", cfg.StopStart),
		zap.String("image", cfg.HelperImage),
		zap.String("docker", cfg.DockerPath),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outputDir, err := cfg.AbsOutputDir()
	if err != nil {
		return err
	}

	client := docker.NewClient(cfg.DockerPath, cfg.CallTimeout)
	executor := archiver.NewExecutor(client)
	orch := orchestrator.New(client, executor, cfg.StopStart, cfg.HelperImage, outputDir)

	var pruner *gc.Pruner
	if cfg.Retention > 0 {
		st, err := store.NewLocalStore(outputDir)
		if err != nil {
			return err
		}
		pruner = gc.NewPruner(st, cfg.Retention, cfg.GCDryRun)
	}

	var notifier *webhook.Notifier
	if cfg.WebhookURL != "" {
		notifier = webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret)
	}

	driver := fleet.NewDriver(client, orch, pruner, notifier, outputDir)

	report, err := driver.Run(ctx)
	if err != nil {
		logger.Log.Error("Run aborted", zap.Error(err))
		return err
	}
	if report.Failed() {
		return errRunFailed
	}
	return nil
}
