package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowtrim/pkg/cache"
	"github.com/matzehuels/flowtrim/pkg/errors"
	flowio "github.com/matzehuels/flowtrim/pkg/io"
	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/network/collapse"
	"github.com/matzehuels/flowtrim/pkg/observability"
)

// Runner encapsulates collapse execution with caching.
// The CLI, the batch command and the HTTP server all use it so caching
// and metrics behave the same everywhere.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store results. Multiple goroutines can safely use the same Runner with
// different tables and options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL is the expiry of cache entries written by the runner.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		TTL:    TTLCollapse,
	}
}

// cachedResult is the cache encoding of a Result.
type cachedResult struct {
	Segments []network.Segment  `json:"segments"`
	Members  []collapse.Group   `json:"members"`
	Removed  []collapse.Removal `json:"removed"`
	Warnings []string           `json:"warnings,omitempty"`
	Stats    collapse.Stats     `json:"stats"`
}

// Execute collapses t with caching. t is not modified.
func (r *Runner) Execute(ctx context.Context, t *network.Table, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnCollapseStart(ctx, t.Len())

	res, err := r.execute(ctx, t, opts)
	elapsed := time.Since(start)
	removed := 0
	if res != nil {
		res.Stats.Duration = elapsed
		removed = res.Stats.Removed
	}
	hooks.OnCollapseComplete(ctx, removed, elapsed, err)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("collapsed network",
		"segments", res.Stats.Segments,
		"removed", res.Stats.Removed,
		"cached", res.CacheInfo.CollapseHit,
		"duration", elapsed)
	return res, nil
}

func (r *Runner) execute(ctx context.Context, t *network.Table, opts Options) (*Result, error) {
	tableHash, err := TableHash(t)
	if err != nil {
		return nil, err
	}
	key := r.Keyer.CollapseKey(tableHash, opts.CollapseKeyOpts())
	cacheHooks := observability.Cache()

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			res, err := decodeResult(data)
			if err == nil {
				cacheHooks.OnCacheHit(ctx, "collapse")
				res.TableHash = tableHash
				res.Stats.Segments = t.Len()
				res.CacheInfo.CollapseHit = true
				return res, nil
			}
			// A corrupt entry is recomputed and overwritten.
			opts.Logger.Debug("discarding cache entry", "key", key, "err", err)
		} else if err != nil {
			opts.Logger.Warn("cache read failed", "err", err)
		}
		cacheHooks.OnCacheMiss(ctx, "collapse")
	}

	copts := opts.CollapseOptions()
	copts.OnStage = func(stage collapse.Stage, removed int, d time.Duration) {
		observability.Pipeline().OnStageComplete(ctx, string(stage), removed, d)
	}
	out, err := collapse.Collapse(t, copts)
	if err != nil {
		return nil, wrapCollapseError(err)
	}

	res := &Result{
		Table:     out.Table,
		Members:   out.Members,
		Removed:   out.Removed,
		Warnings:  out.Warnings,
		TableHash: tableHash,
		Stats: Stats{
			Stats:    out.Stats,
			Segments: t.Len(),
			Removed:  out.Stats.RemovedTotal(),
		},
	}

	if data, err := encodeResult(res); err == nil {
		if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
			opts.Logger.Warn("cache write failed", "err", err)
		} else {
			cacheHooks.OnCacheSet(ctx, "collapse", len(data))
		}
	}
	return res, nil
}

// Render draws t in the requested format with caching.
func (r *Runner) Render(ctx context.Context, t *network.Table, opts RenderOptions) ([]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	tableHash, err := TableHash(t)
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.RenderKey(tableHash, opts.RenderKeyOpts())
	cacheHooks := observability.Cache()

	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		cacheHooks.OnCacheHit(ctx, "render")
		return data, true, nil
	}
	cacheHooks.OnCacheMiss(ctx, "render")

	data, err := Render(ctx, t, opts)
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, r.TTL); err == nil {
		cacheHooks.OnCacheSet(ctx, "render", len(data))
	}
	return data, false, nil
}

// TableHash returns the content hash of t: the SHA-256 of its JSON
// encoding. Tables with the same rows in the same order hash equal.
func TableHash(t *network.Table) (string, error) {
	var buf bytes.Buffer
	if err := flowio.WriteJSON(t, &buf); err != nil {
		return "", fmt.Errorf("hash table: %w", err)
	}
	return cache.Hash(buf.Bytes()), nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func encodeResult(res *Result) ([]byte, error) {
	return json.Marshal(cachedResult{
		Segments: res.Table.Rows(),
		Members:  res.Members,
		Removed:  res.Removed,
		Warnings: res.Warnings,
		Stats:    res.Stats.Stats,
	})
}

func decodeResult(data []byte) (*Result, error) {
	var c cachedResult
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	t, err := network.New(c.Segments)
	if err != nil {
		return nil, err
	}
	return &Result{
		Table:    t,
		Members:  c.Members,
		Removed:  c.Removed,
		Warnings: c.Warnings,
		Stats: Stats{
			Stats:   c.Stats,
			Removed: c.Stats.RemovedTotal(),
		},
	}, nil
}

// wrapCollapseError maps collapse failures to structured error codes.
func wrapCollapseError(err error) error {
	switch {
	case stderrors.Is(err, collapse.ErrStuckLoop):
		return errors.Wrap(errors.ErrCodeStuckLoop, err, "collapse did not converge")
	case stderrors.Is(err, collapse.ErrInvalidThreshold):
		return errors.Wrap(errors.ErrCodeInvalidThreshold, err, "invalid threshold")
	}
	return errors.Wrap(errors.ErrCodeInternal, err, "collapse failed")
}
