package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sandboxgraph/internal/config"
	"github.com/conneroisu/sandboxgraph/internal/docreset"
	"github.com/conneroisu/sandboxgraph/internal/downloader"
	"github.com/conneroisu/sandboxgraph/internal/eval"
	"github.com/conneroisu/sandboxgraph/internal/graph"
	"github.com/conneroisu/sandboxgraph/internal/hostevents"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/orchestrator"
	"github.com/conneroisu/sandboxgraph/internal/preset"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the host server and websocket event hub",
	Long: `Start the sandboxgraph host server: a /compile endpoint that accepts a
module set and entry path, and a /ws websocket endpoint that streams
success/error host events to connected browser clients.

Examples:
  sandboxgraph serve                  # serve on the configured host:port
  sandboxgraph serve --port 9000      # override the port`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "port to serve on (overrides config)")
	serveCmd.Flags().String("host", "", "host to bind to (overrides config)")
	serveCmd.Flags().String("template", "", "default template name when a request omits one")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("sandbox.template", serveCmd.Flags().Lookup("template"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger("serve")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	hub := hostevents.NewHub(logger)
	defer hub.Shutdown()

	resetter := docreset.NewResetter("", nil)

	sandboxID := cfg.Sandbox.ID
	if sandboxID == "" {
		sandboxID = "default"
	}
	manager := graph.NewManager(graph.Config{
		SandboxID:  sandboxID,
		Preset:     preset.FromTemplate(preset.NewBuiltinRegistry().Get(cfg.Sandbox.Template)),
		Storage:    store,
		Evaluator:  eval.NewGojaEvaluator(),
		Downloader: downloader.NewManifestDownloader(nil),
		Logger:     logger,
	})
	if err := manager.Load(ctx); err != nil {
		logger.Warn(ctx, err, "serve: failed to restore persisted graph")
	}

	orch := orchestrator.New(manager, hub, resetter, logger)
	defer orch.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/compile", handleCompile(orch, sandboxID, cfg.Sandbox.Template))
	mux.Handle("/ws", hub)

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info(ctx, "serve: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()

	fmt.Printf("sandboxgraph serving at http://%s (ws at /ws)\n", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

type compileRequestBody struct {
	SandboxID         string          `json:"sandboxId"`
	Modules           []module.Module `json:"modules"`
	Entry             string          `json:"entry"`
	ExternalResources []string        `json:"externalResources"`
	IsModuleView      bool            `json:"isModuleView"`
	Template          string          `json:"template"`
}

func handleCompile(orch *orchestrator.Orchestrator, defaultSandboxID, defaultTemplate string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body compileRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if body.SandboxID == "" {
			body.SandboxID = defaultSandboxID
		}
		if body.Template == "" {
			body.Template = defaultTemplate
		}
		orch.Submit(orchestrator.CompileRequest{
			SandboxID:         body.SandboxID,
			Modules:           body.Modules,
			Entry:             body.Entry,
			ExternalResources: body.ExternalResources,
			IsModuleView:      body.IsModuleView,
			Template:          body.Template,
		})
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}
}
