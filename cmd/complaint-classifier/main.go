// Package main provides the complaint-classifier command line tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ricesearch/complaint-classifier/internal/bus"
	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
	"github.com/ricesearch/complaint-classifier/internal/store"
	"github.com/ricesearch/complaint-classifier/internal/text"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "complaint-classifier",
		Short: "Consumer complaint classifier - train and compare text classifiers",
		Long: `complaint-classifier assigns consumer complaint narratives to one of four
product categories: credit reporting, debt collection, consumer loan and
mortgage.

It normalizes the narratives, builds TF-IDF features, trains five
classifiers, cross-validates and compares them, and saves every model
together with its vectorizer.

Examples:
  complaint-classifier train --data complaints.csv
  complaint-classifier evaluate --data holdout.csv --model naive_bayes
  complaint-classifier predict --model naive_bayes "The collector keeps calling me"`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		trainCmd(),
		evaluateCmd(),
		predictCmd(),
		normalizeCmd(),
		modelsCmd(),
		metricsCmd(),
		historyCmd(),
		versionCmd(),
	)
	return rootCmd
}

// app holds what every command needs: configuration, logger and output
// settings.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	format string
	out    io.Writer
}

func loadApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid format %q (must be text or json)", format)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	// Logs go to stderr so that stdout stays parseable.
	log := logger.NewWithWriter(os.Stderr, level, cfg.Log.Format)

	return &app{cfg: cfg, log: log, format: format, out: cmd.OutOrStdout()}, nil
}

func (a *app) jsonOutput() bool {
	return a.format == "json"
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// normalizer fetches the language resources and wraps the normalizer in
// the configured cache. The returned func flushes the cache.
func (a *app) normalizer(ctx context.Context) (*text.CachedNormalizer, func(), error) {
	n, err := text.Setup(ctx, a.cfg.Text, a.log)
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.Text.CacheSize == 0 {
		return text.NewCachedNormalizer(n, nil), func() {}, nil
	}

	cache := text.NewCache(a.cfg.Text.CacheSize)
	if a.cfg.Text.CachePath != "" {
		cache.SetPersistPath(a.cfg.Text.CachePath)
		if err := cache.Load(); err != nil {
			a.log.WithError(err).Warn("Ignoring normalization cache", "path", a.cfg.Text.CachePath)
			cache.Clear()
		}
	}
	flush := func() {
		if err := cache.Flush(); err != nil {
			a.log.WithError(err).Warn("Failed to persist normalization cache")
		}
		stats := cache.Stats()
		a.log.Debug("Normalization cache", "size", stats.Size, "hits", stats.Hits, "misses", stats.Misses)
	}
	return text.NewCachedNormalizer(n, cache), flush, nil
}

func (a *app) openStore() (store.BlobStore, error) {
	return store.New(a.cfg.Store, a.log)
}

func (a *app) openBus() (bus.Bus, error) {
	return bus.NewBus(a.cfg.Bus, a.log)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "complaint-classifier %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
		},
	}
}
