// Package localwatch feeds the compile orchestrator from a local source
// directory for development use: on every filesystem change it rereads
// the tree and submits a fresh compile request. Grounded on
// templar/internal/watcher.FileWatcher (recursive fsnotify registration,
// a debounced batch loop), trimmed to drive a CompileRequest instead of a
// templ-specific rebuild callback.
package localwatch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sandboxgraph/internal/logging"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/orchestrator"
)

// Watcher rebuilds and resubmits the sandbox's module set whenever a file
// under Root changes.
type Watcher struct {
	fsw  *fsnotify.Watcher
	root string

	sandboxID string
	entry     string
	template  string
	exts      map[string]bool

	orch   *orchestrator.Orchestrator
	logger logging.Logger

	debounce time.Duration
}

// New creates a Watcher. exts restricts which file extensions are read
// into the module set (e.g. {".js": true, ".css": true}); a nil map
// means "read every regular file".
func New(root, sandboxID, entry, template string, exts map[string]bool, orch *orchestrator.Orchestrator, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:       fsw,
		root:      root,
		sandboxID: sandboxID,
		entry:     entry,
		template:  template,
		exts:      exts,
		orch:      orch,
		logger:    logger,
		debounce:  150 * time.Millisecond,
	}, nil
}

// Start registers every directory under root and runs the watch loop
// until ctx is cancelled. It submits one compile request immediately, so
// the sandbox has content before the first edit.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.submit(ctx)

	go w.loop(ctx)
	return nil
}

// Stop releases the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { w.submit(ctx) })
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn(ctx, err, "localwatch: fsnotify error")
			}
		}
	}
}

func (w *Watcher) submit(ctx context.Context) {
	mods, err := w.readModules()
	if err != nil {
		if w.logger != nil {
			w.logger.Warn(ctx, err, "localwatch: failed to read module set", "root", w.root)
		}
		return
	}
	w.orch.Submit(orchestrator.CompileRequest{
		SandboxID: w.sandboxID,
		Modules:   mods,
		Entry:     w.entry,
		Template:  w.template,
	})
}

func (w *Watcher) readModules() ([]module.Module, error) {
	var mods []module.Module
	err := filepath.WalkDir(w.root, func(diskPath string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.exts != nil && !w.exts[filepath.Ext(diskPath)] {
			return nil
		}
		data, err := os.ReadFile(diskPath)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.root, diskPath)
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
