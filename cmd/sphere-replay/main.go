// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sphere-client/internal/chat"
	"github.com/jeranaias/sphere-client/internal/config"
	"github.com/jeranaias/sphere-client/internal/export"
	"github.com/jeranaias/sphere-client/internal/logging"
	"github.com/jeranaias/sphere-client/internal/transport"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sphere-replay",
		Short:         "Replay recorded SPHERE backend fixtures through the chat store",
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newParseCmd(), newInitConfigCmd())
	return root
}

// =============================================================================
// RUN
// =============================================================================

type runOptions struct {
	format     string
	exportFmt  string
	outDir     string
	configPath string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run FIXTURE",
		Short: "Replay a fixture and print the resulting store snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "yaml", "report format (yaml, json)")
	cmd.Flags().StringVar(&opts.exportFmt, "export", "", "also export every session (md, json, yaml)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "directory for exported sessions")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.sphere/config.toml)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}

func runReplay(ctx context.Context, fixturePath string, opts *runOptions, stdout, stderr io.Writer) error {
	format := strings.ToLower(opts.format)
	if format != "yaml" && format != "json" {
		return errors.Errorf("unsupported report format: %s", opts.format)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, stderr)

	fixture, err := LoadFixture(fixturePath)
	if err != nil {
		return err
	}
	tr, err := fixture.Transport(logging.Component(logger, "feed"))
	if err != nil {
		return err
	}

	store, err := chat.Open(tr, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := Replay(ctx, store, fixture, logger)
	if err != nil {
		return errors.Wrap(err, "replay")
	}

	if opts.exportFmt != "" {
		if err := exportSessions(store, report, opts); err != nil {
			return err
		}
	}
	return writeReport(stdout, report, format)
}

func writeReport(w io.Writer, report *Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(report), "encode report")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return enc.Close()
}

func exportSessions(store *chat.Store, report *Report, opts *runOptions) error {
	exportOpts := export.DefaultOptions()
	exportOpts.OutputDir = opts.outDir
	exporter, err := export.New(opts.exportFmt, exportOpts)
	if err != nil {
		return err
	}

	for id := range report.State.Messages {
		if _, err := export.WriteFile(store.Transcript(id), exporter, exportOpts); err != nil {
			return errors.Wrapf(err, "export session %s", id)
		}
	}
	return nil
}

// =============================================================================
// PARSE
// =============================================================================

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse TRANSCRIPT",
		Short: "Decode an SSE transcript and print its events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parseTranscript(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func parseTranscript(ctx context.Context, path string, stdout, stderr io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open transcript")
	}

	logger := logging.New(config.LogConfig{Level: "warn"}, stderr)
	feed := transport.NewFeed(file, logger)
	defer feed.Close()

	enc := json.NewEncoder(stdout)
	count := 0
	for {
		ev, err := feed.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read transcript")
		}
		if err := enc.Encode(ev); err != nil {
			return errors.Wrap(err, "encode event")
		}
		count++
	}

	fmt.Fprintf(stderr, "%d events, %d skipped\n", count, feed.Skipped())
	return nil
}

// =============================================================================
// INIT-CONFIG
// =============================================================================

func newInitConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config [PATH]",
		Short: "Write the default settings file (default ~/.sphere/config.toml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return initConfig(path, force, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func initConfig(path string, force bool, stdout io.Writer) error {
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(path); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	fmt.Fprintln(stdout, path)
	return nil
}
