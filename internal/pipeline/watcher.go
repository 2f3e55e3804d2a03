package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/kbchat/internal/parser"
)

// Watcher re-runs the pipeline when source documents in the knowledge base
// directory change. Bursts of events within the debounce window collapse
// into a single run.
type Watcher struct {
	p        *Pipeline
	debounce time.Duration
	log      *slog.Logger
}

func NewWatcher(p *Pipeline, debounce time.Duration, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{p: p, debounce: debounce, log: log.With("component", "watcher")}
}

// Run watches until ctx is cancelled. The directory must already exist.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.p.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.p.Dir(), err)
	}
	w.log.Info("watching knowledge base", "dir", w.p.Dir(), "debounce", w.debounce.String())

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if triggersRun(ev) {
				w.log.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timer.C:
			if _, err := w.p.Run(ctx, TriggerWatch); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error("watch-triggered run failed", "error", err)
			}
		}
	}
}

// triggersRun reports whether an event can change the published manifest.
// Extract creations and manifest writes come from the pipeline itself and
// are ignored; removing an extract re-triggers its conversion.
func triggersRun(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if hidden(name) {
		return false
	}
	if parser.IsSource(name) {
		return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
			ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
	}
	if strings.HasSuffix(name, ExtractSuffix) {
		return ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
	}
	return false
}
