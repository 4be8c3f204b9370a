// Package engine coordinates analysis, caching, and query resolution per
// project root.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sync"
	"time"

	"github.com/trailofbits/slither-mcp/internal/analyzer"
	"github.com/trailofbits/slither-mcp/internal/artifacts"
	"github.com/trailofbits/slither-mcp/internal/config"
	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/logging"
	"github.com/trailofbits/slither-mcp/internal/storage"
)

// Engine loads fact stores on demand and hands out query resolvers over
// them. Loading prefers memory, then the artifact cache, then a fresh
// analyzer run; per project root at most one analysis is in flight at any
// time, with concurrent requesters sharing its result.
type Engine struct {
	cfg      *config.Config
	analyzer analyzer.Analyzer
	registry *storage.Registry
	logger   *logging.Logger

	mu       sync.Mutex
	stores   map[string]*facts.Store
	inflight map[string]*loadCall
}

type loadCall struct {
	done  chan struct{}
	store *facts.Store
	err   error
}

// New creates an engine. registry may be nil when artifact bookkeeping is
// not wanted (tests, one-shot CLI queries).
func New(cfg *config.Config, an analyzer.Analyzer, registry *storage.Registry, logger *logging.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		analyzer: an,
		registry: registry,
		logger:   logger,
		stores:   make(map[string]*facts.Store),
		inflight: make(map[string]*loadCall),
	}
}

// Facts returns the fact store for a project root, analyzing on first use.
// Concurrent calls for the same root block on the single in-flight load;
// once a store is resident every call returns it without locking the
// analyzer path again.
func (e *Engine) Facts(ctx context.Context, projectRoot string) (*facts.Store, error) {
	root := filepath.Clean(projectRoot)

	e.mu.Lock()
	if store, ok := e.stores[root]; ok {
		e.mu.Unlock()
		return store, nil
	}
	if call, ok := e.inflight[root]; ok {
		e.mu.Unlock()
		select {
		case <-call.done:
			return call.store, call.err
		case <-ctx.Done():
			return nil, errors.Wrap(errors.AnalysisFailed, "waiting for analysis", ctx.Err())
		}
	}

	call := &loadCall{done: make(chan struct{})}
	e.inflight[root] = call
	e.mu.Unlock()

	call.store, call.err = e.load(ctx, root)

	e.mu.Lock()
	if call.err == nil {
		e.stores[root] = call.store
	}
	delete(e.inflight, root)
	e.mu.Unlock()
	close(call.done)

	return call.store, call.err
}

// Refresh drops the resident store and artifact and re-analyzes
func (e *Engine) Refresh(ctx context.Context, projectRoot string) (*facts.Store, error) {
	root := filepath.Clean(projectRoot)

	e.mu.Lock()
	delete(e.stores, root)
	e.mu.Unlock()

	if e.cfg.Cache.Enabled {
		if err := e.cacheFor(root).Remove(); err != nil {
			return nil, err
		}
	}
	return e.Facts(ctx, root)
}

// load resolves a store from the artifact cache or a fresh analysis. A
// stale or corrupt artifact is not fatal; it logs and falls through to
// re-analysis, which overwrites it.
func (e *Engine) load(ctx context.Context, root string) (*facts.Store, error) {
	cache := e.cacheFor(root)

	if e.cfg.Cache.Enabled && cache.Exists() {
		store, err := cache.Load(ctx)
		if err == nil {
			return store, nil
		}
		switch errors.CodeOf(err) {
		case errors.VersionMismatch, errors.CorruptArtifact:
			e.logger.Warn("discarding unusable artifact", logging.Fields{
				"project_root": root,
				"reason":       err.Error(),
			})
		default:
			return nil, err
		}
	}

	ctx, cancel := e.analysisContext(ctx)
	defer cancel()

	store, err := e.analyzer.Analyze(ctx, root)
	if err != nil {
		return nil, err
	}

	if e.cfg.Cache.Enabled {
		if err := cache.Save(ctx, store); err != nil {
			return nil, err
		}
		e.record(root, cache, store)
	}
	return store, nil
}

func (e *Engine) analysisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Analyzer.TimeoutSeconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(e.cfg.Analyzer.TimeoutSeconds)*time.Second)
}

// record updates the artifact registry; registry failures are logged, not
// propagated, since the analysis itself succeeded.
func (e *Engine) record(root string, cache *artifacts.Cache, store *facts.Store) {
	if e.registry == nil {
		return
	}
	err := e.registry.Record(storage.Entry{
		ProjectRoot:   root,
		ArtifactPath:  cache.Path(),
		SchemaVersion: artifacts.SchemaVersion,
		Contracts:     store.ContractCount(),
		Functions:     store.FunctionCount(),
		AnalyzedAt:    time.Now().UTC(),
	})
	if err != nil {
		e.logger.Warn("failed to record artifact", logging.Fields{
			"project_root": root,
			"error":        err.Error(),
		})
	}
}

// cacheFor picks the artifact directory for a project root. A relative
// configured dir nests under the root; an absolute one gets a per-root
// subdirectory so projects cannot clobber each other's artifacts.
func (e *Engine) cacheFor(root string) *artifacts.Cache {
	dir := e.cfg.Cache.Dir
	if dir == "" {
		dir = config.ConfigDir
	}
	if filepath.IsAbs(dir) {
		sum := sha256.Sum256([]byte(root))
		dir = filepath.Join(dir, hex.EncodeToString(sum[:8]))
	} else {
		dir = filepath.Join(root, dir)
	}
	return artifacts.New(dir, e.logger)
}
