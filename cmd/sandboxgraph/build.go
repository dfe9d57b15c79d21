package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sandboxgraph/internal/config"
	"github.com/conneroisu/sandboxgraph/internal/downloader"
	"github.com/conneroisu/sandboxgraph/internal/eval"
	"github.com/conneroisu/sandboxgraph/internal/graph"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/preset"
)

var buildCmd = &cobra.Command{
	Use:   "build <dir> <entry>",
	Short: "Transpile and evaluate a directory's module set once",
	Long: `Read every file under dir into a module set, transpile and evaluate
entry against it, and print the resulting exports (or diagnostics on
failure), then exit. Unlike watch, this runs once and does not start a
filesystem watch or a server.

Examples:
  sandboxgraph build ./src /index.js
  sandboxgraph build ./src /index.js --template vanilla`,
	Args: cobra.ExactArgs(2),
	RunE: runBuild,
}

var buildTemplate string

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildTemplate, "template", "", "template name (default from config, else vanilla)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	root, entry := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	template := buildTemplate
	if template == "" {
		template = cfg.Sandbox.Template
	}
	if template == "" {
		template = "vanilla"
	}

	logger := newLogger("build")
	ctx := context.Background()

	manager := graph.NewManager(graph.Config{
		SandboxID:  "build",
		Preset:     preset.FromTemplate(preset.NewBuiltinRegistry().Get(template)),
		Evaluator:  eval.NewGojaEvaluator(),
		Downloader: downloader.NewManifestDownloader(nil),
		Logger:     logger,
	})

	mods, err := readModuleTree(root)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", root, err)
	}
	manager.UpdateData(mods)

	var entryMod module.Module
	found := false
	for _, mod := range mods {
		if mod.Path == entry {
			entryMod, found = mod, true
			break
		}
	}
	if !found {
		return fmt.Errorf("entry %q not found under %s", entry, root)
	}

	entryNode := manager.AddTranspiledModule(entryMod, "")

	if err := manager.TranspileModules(ctx, entryNode); err != nil {
		printDiagnostics(manager)
		return fmt.Errorf("transpile failed: %w", err)
	}

	exports, err := manager.EvaluateModule(entryNode)
	if err != nil {
		printDiagnostics(manager)
		return fmt.Errorf("evaluate failed: %w", err)
	}

	fmt.Printf("compiled %s -> %s\n", root, entry)
	fmt.Printf("exports: %#v\n", exports)
	printDiagnostics(manager)
	return nil
}

func printDiagnostics(manager *graph.Manager) {
	for _, d := range manager.Diagnostics().All() {
		fmt.Fprintln(os.Stderr, d.String())
	}
}

func readModuleTree(root string) ([]module.Module, error) {
	var mods []module.Module
	err := filepath.WalkDir(root, func(diskPath string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(diskPath)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, diskPath)
		if err != nil {
			return err
		}
		mods = append(mods, module.Module{
			Path: "/" + strings.ReplaceAll(rel, string(filepath.Separator), "/"),
			Code: string(data),
		})
		return nil
	})
	return mods, err
}
