// Package orchestrator implements the out-of-scope compile-request queue
// of spec.md §2/§5: a single-slot coalescing pipeline in front of the
// graph manager. A new request replaces whatever request is still pending
// rather than queuing behind it; a request already running is not
// interrupted and finishes first, since concurrent graph mutation would
// corrupt edge pairs and diagnostic buffers. Grounded on
// templar/internal/build.BuildPipeline's worker/queue shape, trimmed from
// N-worker fan-out to the single active slot spec.md §5 requires.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/sandboxgraph/internal/diagnostics"
	"github.com/conneroisu/sandboxgraph/internal/docreset"
	"github.com/conneroisu/sandboxgraph/internal/graph"
	"github.com/conneroisu/sandboxgraph/internal/hostevents"
	"github.com/conneroisu/sandboxgraph/internal/logging"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/resolver"
)

// CompileRequest is the external input record of spec.md §6.
type CompileRequest struct {
	SandboxID         string
	Modules           []module.Module
	Entry             string
	ExternalResources []string
	Dependencies      map[string]resolver.ManifestEntry
	HasActions        bool
	IsModuleView      bool
	Template          string
}

// Orchestrator serializes compile requests onto the graph manager, per
// spec.md §5's single-slot scheduling model.
type Orchestrator struct {
	manager *graph.Manager
	hub     *hostevents.Hub
	reset   *docreset.Resetter
	logger  logging.Logger

	mu      sync.Mutex
	pending *CompileRequest

	notify chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an Orchestrator bound to manager and starts its run loop.
func New(manager *graph.Manager, hub *hostevents.Hub, reset *docreset.Resetter, logger logging.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		manager: manager,
		hub:     hub,
		reset:   reset,
		logger:  logger,
		notify:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	go o.loop()
	return o
}

// Submit replaces the pending slot with req, coalescing with whatever was
// queued (not yet picked up) before it.
func (o *Orchestrator) Submit(req CompileRequest) {
	o.mu.Lock()
	o.pending = &req
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Shutdown stops the run loop.
func (o *Orchestrator) Shutdown() { o.cancel() }

func (o *Orchestrator) loop() {
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.notify:
			o.takeAndRun()
		}
	}
}

func (o *Orchestrator) takeAndRun() {
	o.mu.Lock()
	req := o.pending
	o.pending = nil
	o.mu.Unlock()

	if req == nil {
		return
	}
	o.run(o.ctx, *req)
}

// run executes one compile request to completion: adopt the file set,
// transpile and evaluate the entry, persist the graph, and emit the
// matching host event, per spec.md §2 request flow and §7 error policy.
func (o *Orchestrator) run(ctx context.Context, req CompileRequest) {
	o.manager.UpdateData(req.Modules)
	o.manager.SetManifest(req.Dependencies)

	entryQuery, entryPath := resolver.SplitLoaderChain(req.Entry)
	entryMod, ok := findModule(req.Modules, entryPath)
	if !ok {
		o.fail(req, req.Entry, req.Entry, &diagnostics.GraphError{
			ModuleID: req.Entry,
			FileName: req.Entry,
			Err:      fmt.Errorf("entry %q not present in module set", req.Entry),
		})
		return
	}
	entryNode := o.manager.AddTranspiledModule(entryMod, entryQuery)

	if o.reset != nil && !req.IsModuleView && !o.manager.HMRActive() {
		if _, err := o.reset.ResetDocument(req.ExternalResources); err != nil && o.logger != nil {
			o.logger.Warn(ctx, err, "orchestrator: failed to reset document", "sandboxId", req.SandboxID)
		}
	}

	if err := o.manager.TranspileModules(ctx, entryNode); err != nil {
		o.fail(req, entryNode.Identity().String(), req.Entry, err)
		return
	}

	if _, err := o.manager.EvaluateModule(entryNode); err != nil {
		o.fail(req, entryNode.Identity().String(), req.Entry, err)
		return
	}

	if err := o.manager.Save(ctx); err != nil && o.logger != nil {
		o.logger.Warn(ctx, err, "orchestrator: failed to persist graph", "sandboxId", req.SandboxID)
	}

	if o.hub != nil {
		_ = o.hub.Broadcast(hostevents.Event{Type: hostevents.EventSuccess})
	}
}

func (o *Orchestrator) fail(req CompileRequest, moduleID, fileName string, err error) {
	if clearErr := o.manager.ClearCache(o.ctx); clearErr != nil && o.logger != nil {
		o.logger.Warn(o.ctx, clearErr, "orchestrator: failed to clear cache after request failure", "sandboxId", req.SandboxID)
	}
	if o.logger != nil {
		o.logger.Error(o.ctx, err, "orchestrator: compile request failed", "sandboxId", req.SandboxID, "entry", req.Entry)
	}
	if o.hub != nil {
		_ = o.hub.Broadcast(hostevents.Event{
			Type:     hostevents.EventError,
			Message:  err.Error(),
			Module:   moduleID,
			FileName: fileName,
		})
	}
}

func findModule(mods []module.Module, path string) (module.Module, bool) {
	for _, mod := range mods {
		if mod.Path == path {
			return mod, true
		}
	}
	return module.Module{}, false
}
