package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dgallion1/kbchat/internal/parser"
)

// Options configures a Pipeline.
type Options struct {
	Dir            string // knowledge base directory
	ManifestName   string // manifest filename inside Dir
	ReconvertStale bool   // regenerate extracts older than their source
	Parser         parser.Options

	// ParserFor overrides parser selection. Defaults to parser.ForFile with Parser.
	ParserFor ParserFunc
	// HistorySize is how many runs the pipeline remembers.
	HistorySize int
}

// Pipeline scans the knowledge base directory, converts new source documents
// into text extracts and republishes the manifest. Runs against one Pipeline
// are serialized.
type Pipeline struct {
	mu sync.Mutex

	dir          string
	manifestName string
	conv         *Converter
	runs         *RunStore
	log          *slog.Logger
}

// New creates a pipeline. It does not touch the filesystem until Run.
func New(opts Options, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if opts.ManifestName == "" {
		opts.ManifestName = "manifest.json"
	}
	parserFor := opts.ParserFor
	if parserFor == nil {
		popts := opts.Parser
		parserFor = func(name string) (parser.Parser, error) {
			return parser.ForFile(name, popts)
		}
	}
	return &Pipeline{
		dir:          opts.Dir,
		manifestName: opts.ManifestName,
		conv:         NewConverter(parserFor, opts.ReconvertStale),
		runs:         NewRunStore(opts.HistorySize),
		log:          log.With("component", "pipeline"),
	}
}

// Dir returns the knowledge base directory.
func (p *Pipeline) Dir() string {
	return p.dir
}

// ManifestPath returns the full path of the manifest file.
func (p *Pipeline) ManifestPath() string {
	return filepath.Join(p.dir, p.manifestName)
}

// Run performs one scan, convert and manifest cycle. Per-document problems
// are recorded in the snapshot and never fail the run; a returned error
// wraps ErrFatal and means no manifest was written.
//
// A run that has started always finishes: ctx is only consulted before the
// run acquires the directory.
func (p *Pipeline) Run(ctx context.Context, trigger Trigger) (RunSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return RunSnapshot{}, err
	}

	run := newRun(trigger)
	p.runs.Put(run)
	log := p.log.With("run_id", run.id, "trigger", string(trigger))
	log.Info("knowledge base run started", "dir", p.dir)

	run.setState(StateScanning)
	entries, err := Scan(p.dir)
	if err != nil {
		log.Error("scan failed", "error", err)
		run.fail(err)
		return run.Snapshot(), err
	}

	run.setState(StateConverting)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || hidden(name) || !parser.IsSource(name) {
			continue
		}
		src := filepath.Join(p.dir, name)
		dst := filepath.Join(p.dir, ExtractName(name))
		run.addResult(p.conv.Convert(log, src, dst))
	}

	run.setState(StateManifestWriting)
	names, err := BuildManifest(p.dir, p.manifestName)
	if err != nil {
		log.Error("manifest write failed", "error", err)
		run.fail(err)
		return run.Snapshot(), err
	}
	run.complete(names)

	snap := run.Snapshot()
	log.Info("knowledge base run finished",
		"status", string(snap.Status),
		"converted", snap.Counts.Converted,
		"unchanged", snap.Counts.Unchanged,
		"skipped", snap.Counts.Skipped,
		"failed", snap.Counts.Failed,
		"manifest_entries", len(names),
	)
	return snap, nil
}

// Latest returns the snapshot of the most recent run.
func (p *Pipeline) Latest() (RunSnapshot, bool) {
	r := p.runs.Latest()
	if r == nil {
		return RunSnapshot{}, false
	}
	return r.Snapshot(), true
}

// GetRun returns the snapshot of a remembered run.
func (p *Pipeline) GetRun(id string) (RunSnapshot, bool) {
	r := p.runs.Get(id)
	if r == nil {
		return RunSnapshot{}, false
	}
	return r.Snapshot(), true
}

// Runs returns remembered runs, newest first.
func (p *Pipeline) Runs() []RunSnapshot {
	return p.runs.List()
}

// ReadManifest reads the currently published manifest.
func (p *Pipeline) ReadManifest() ([]string, error) {
	names, err := ReadManifest(p.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return names, nil
}
