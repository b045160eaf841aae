// Package main provides the notion-watch CLI. It polls configured Notion
// databases, diffs each against its last stored snapshot, and publishes the
// resulting change report — to stdout, a file, or a GitHub pull request.
//
// Modes:
//   - run   : one observation batch (full, or incremental against an open PR)
//   - watch : the run cycle on a timer, with optional Prometheus metrics
//
// Secrets are resolved here and only here: NOTION_TOKEN for the source API,
// GITHUB_TOKEN for the PR lifecycle. Everything below cmd/ takes explicit
// parameters.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"notion-watch/internal/config"
	"notion-watch/internal/ghpr"
	"notion-watch/internal/notion"
	"notion-watch/internal/runner"
	"notion-watch/internal/snapshot"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
	runner *runner.Runner
	store  *snapshot.Store
	github *ghpr.Client // nil when the PR flow is not configured
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "notion-watch",
		Short:         "Track changes in Notion databases and report them as pull requests",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "notion-watch.yaml", "path to the YAML configuration")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newSnapshotCmd(a))
	return root
}

// setup loads config and wires the clients. Called by each subcommand so
// flag parsing happens before any I/O.
func (a *app) setup(withMetrics bool) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	token := os.Getenv("NOTION_TOKEN")
	if token == "" {
		return fmt.Errorf("NOTION_TOKEN is not set")
	}
	source := notion.NewClient(notion.Config{
		Token:    token,
		Version:  cfg.Notion.Version,
		PageSize: cfg.Notion.PageSize,
	})

	a.store = snapshot.NewStore(cfg.StateDir)

	var metrics *runner.Metrics
	if withMetrics && cfg.MetricsAddr != "" {
		metrics = runner.NewMetrics(prometheus.DefaultRegisterer)
	}
	a.runner = runner.New(source, a.store, a.logger, metrics)

	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		ghToken := os.Getenv("GITHUB_TOKEN")
		if ghToken == "" {
			return fmt.Errorf("github.owner/repo configured but GITHUB_TOKEN is not set")
		}
		a.github = ghpr.NewClient(ghpr.Config{
			Owner: cfg.GitHub.Owner,
			Repo:  cfg.GitHub.Repo,
			Token: ghToken,
		})
	}
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one observation batch and publish the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			return a.runOnce(cmd.Context(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the rendered report to this file instead of stdout (ignored when the PR flow is configured)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run observation batches on the configured interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.MetricsAddr != "" {
				go a.serveMetrics(ctx)
			}
			runner.Watch(ctx, a.cfg.Interval, a.logger, func(ctx context.Context) {
				if err := a.runOnce(ctx, ""); err != nil {
					a.logger.Error("batch failed", "error", err)
				}
			})
			return nil
		},
	}
}

func (a *app) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.Error("metrics server", "error", err)
	}
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or delete locally stored snapshots",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <collection-id>",
		Short: "Print the stored snapshot of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			s, err := a.store.Load(args[0])
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("no snapshot stored for %s", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s.Records)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <collection-id>...",
		Short: "Delete stored snapshots (missing ones are ignored)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			for _, id := range args {
				if err := a.store.Delete(id); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return cmd
}
