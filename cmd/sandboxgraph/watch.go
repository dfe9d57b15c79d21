package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sandboxgraph/internal/config"
	"github.com/conneroisu/sandboxgraph/internal/docreset"
	"github.com/conneroisu/sandboxgraph/internal/downloader"
	"github.com/conneroisu/sandboxgraph/internal/eval"
	"github.com/conneroisu/sandboxgraph/internal/graph"
	"github.com/conneroisu/sandboxgraph/internal/hostevents"
	"github.com/conneroisu/sandboxgraph/internal/localwatch"
	"github.com/conneroisu/sandboxgraph/internal/orchestrator"
	"github.com/conneroisu/sandboxgraph/internal/preset"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a local directory and recompile on change",
	Long: `Watch a local directory's files as a sandbox's module set, resubmitting
a compile request to the graph manager on every filesystem change. No
host server is started; this is for driving the core from a terminal.

Examples:
  sandboxgraph watch ./src --entry /index.js
  sandboxgraph watch ./src --entry /index.js --template vanilla`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchEntry string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchEntry, "entry", "/index.js", "entry module path, relative to the watched directory")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger("watch")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sandboxID := cfg.Sandbox.ID
	if sandboxID == "" {
		sandboxID = "local"
	}
	template := cfg.Sandbox.Template
	if template == "" {
		template = "vanilla"
	}

	manager := graph.NewManager(graph.Config{
		SandboxID:  sandboxID,
		Preset:     preset.FromTemplate(preset.NewBuiltinRegistry().Get(template)),
		Evaluator:  eval.NewGojaEvaluator(),
		Downloader: downloader.NewManifestDownloader(nil),
		Logger:     logger,
	})

	hub := hostevents.NewHub(logger)
	defer hub.Shutdown()

	orch := orchestrator.New(manager, hub, docreset.NewResetter("", nil), logger)
	defer orch.Shutdown()

	w, err := localwatch.New(root, sandboxID, watchEntry, template, nil, orch, logger)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("sandboxgraph watching %s (entry %s)\n", root, watchEntry)
	<-sigChan
	logger.Info(ctx, "watch: shutting down")
	return nil
}
