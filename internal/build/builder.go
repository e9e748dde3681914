package build

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/lumen/internal/cache"
	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/interchange"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/optimize"
	"github.com/roach88/lumen/internal/parser"
)

// Unit is one compiled source file.
type Unit struct {
	Path        string         `json:"path"`
	Mode        string         `json:"mode"`
	StoreID     string         `json:"store_id"`
	Key         string         `json:"key"`
	Cached      bool           `json:"cached"`
	Nodes       int            `json:"nodes"`
	Stats       optimize.Stats `json:"stats"`
	Imports     []string       `json:"imports,omitempty"`
	Exports     []string       `json:"exports,omitempty"`
	Shaken      []string       `json:"shaken,omitempty"`
	Diagnostics diag.List      `json:"diagnostics"`

	Store *ir.Store `json:"-"`
}

// Report is the result of a build. Units are ordered by path.
type Report struct {
	Units []*Unit `json:"units"`
	// Diagnostics that concern several units, such as import cycles.
	Diagnostics diag.List `json:"diagnostics"`
}

// Unit returns the unit compiled from path, or nil.
func (r *Report) Unit(path string) *Unit {
	i, ok := slices.BinarySearchFunc(r.Units, filepath.Clean(path), func(u *Unit, p string) int {
		return strings.Compare(u.Path, p)
	})
	if !ok {
		return nil
	}
	return r.Units[i]
}

// AllDiagnostics returns the build diagnostics followed by every unit's,
// sorted by path and position.
func (r *Report) AllDiagnostics() diag.List {
	all := slices.Clone(r.Diagnostics)
	for _, u := range r.Units {
		all = append(all, u.Diagnostics...)
	}
	return all.Sorted()
}

// HasErrors reports whether any unit has a lexical or syntax error.
func (r *Report) HasErrors() bool {
	return r.AllDiagnostics().HasErrors()
}

// Builder compiles units. It is safe to call Build from one goroutine at a
// time.
type Builder struct {
	options     optimize.Options
	mode        *parser.Mode
	cache       *cache.Cache
	cacheLimit  int64
	ids         interchange.IDGenerator
	workers     int
	treeShaking bool
	entries     []string
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithOptions sets the optimizer options used for every unit.
func WithOptions(o optimize.Options) Option {
	return func(b *Builder) { b.options = o }
}

// WithMode parses every unit in mode instead of picking it from the file
// extension.
func WithMode(m parser.Mode) Option {
	return func(b *Builder) { b.mode = &m }
}

// WithCache enables the compile cache. After each build the cache is
// trimmed to limit bytes; a limit of 0 disables trimming.
func WithCache(c *cache.Cache, limit int64) Option {
	return func(b *Builder) {
		b.cache = c
		b.cacheLimit = limit
	}
}

// WithIDGenerator sets the store id generator. Defaults to UUIDv7.
func WithIDGenerator(g interchange.IDGenerator) Option {
	return func(b *Builder) { b.ids = g }
}

// WithWorkers bounds the number of units compiled at once. 0 means
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// WithTreeShaking turns whole-program export removal on or off. It is on
// by default.
func WithTreeShaking(on bool) Option {
	return func(b *Builder) { b.treeShaking = on }
}

// WithEntryUnits names the units whose exports are always kept. By
// default every unit no other unit imports is an entry.
func WithEntryUnits(paths ...string) Option {
	return func(b *Builder) { b.entries = paths }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New creates a Builder. Without options it optimizes at level 1.
func New(opts ...Option) *Builder {
	b := &Builder{
		options:     optimize.Options{Level: 1},
		ids:         interchange.UUIDv7Generator{},
		treeShaking: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.options.Logger == nil {
		b.options.Logger = b.logger
	}
	return b
}

// Build compiles paths and links the resulting units. Diagnostics never
// fail a build; unreadable files, unsupported extensions, invalid options,
// IR invariant violations and cancellation do.
func (b *Builder) Build(ctx context.Context, paths []string) (*Report, error) {
	pipeline, err := optimize.New(b.options)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	paths = normalize(paths)
	b.logger.Info("build started", "units", len(paths), "workers", b.workerCount())

	// Ids are drawn up front so they follow path order whatever order the
	// workers finish in.
	ids := make([]string, len(paths))
	for i := range paths {
		ids[i] = b.ids.Generate()
	}

	units := make([]*Unit, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workerCount())
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, err := b.compile(gctx, pipeline, path, ids[i])
			if err != nil {
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	report := &Report{Units: units}
	us := link(report)
	report.Diagnostics = append(report.Diagnostics, us.cycles()...)
	if b.treeShaking && slices.Contains(pipeline.Passes(), optimize.PassDCE) {
		if err := b.shake(ctx, pipeline, report, us); err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
	}
	for _, u := range units {
		u.Nodes = u.Store.Len()
	}

	if b.cache != nil && b.cacheLimit > 0 {
		if n, err := b.cache.Evict(ctx, b.cacheLimit); err != nil {
			b.logger.Warn("cache eviction failed", "error", err)
		} else if n > 0 {
			b.logger.Debug("cache trimmed", "evicted", n)
		}
	}
	b.logger.Info("build finished", "units", len(units), "diagnostics", len(report.AllDiagnostics()))
	return report, nil
}

func (b *Builder) workerCount() int {
	if b.workers > 0 {
		return b.workers
	}
	return runtime.GOMAXPROCS(0)
}

// normalize cleans, sorts and de-duplicates paths.
func normalize(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Clean(p)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (b *Builder) modeFor(path string) (parser.Mode, error) {
	if b.mode != nil {
		return *b.mode, nil
	}
	m, ok := parser.ModeFromPath(path)
	if !ok {
		return m, fmt.Errorf("%s: unsupported source file extension", path)
	}
	return m, nil
}

// fingerprint lists every option that changes the compiled output.
func (b *Builder) fingerprint() map[string]any {
	strs := func(ss []string) []any {
		out := make([]any, len(ss))
		for i, s := range ss {
			out[i] = s
		}
		return out
	}
	return map[string]any{
		"level":      b.options.Level,
		"passes":     strs(b.options.Passes),
		"max_rounds": b.options.MaxRounds,
		"entry":      strs(b.options.Entry),
		"preserve":   strs(b.options.Preserve),
	}
}

// compile reads, parses and optimizes one unit, or loads it from the
// cache. id becomes the store id of a freshly compiled unit; a cached unit
// keeps the id it was stored under.
func (b *Builder) compile(ctx context.Context, pipeline *optimize.Pipeline, path, id string) (*Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	mode, err := b.modeFor(path)
	if err != nil {
		return nil, err
	}
	key, err := ir.SourceKey(string(src), mode.String(), b.fingerprint())
	if err != nil {
		return nil, err
	}
	u := &Unit{Path: path, Mode: mode.String(), Key: key}

	if u.load(ctx, b.cache, b.logger) {
		return u, nil
	}

	res, err := parser.Parse(string(src), mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stats, diags, err := pipeline.Run(res.Store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	u.Store = res.Store
	u.Stats = stats
	u.Diagnostics = append(res.Diagnostics, diags...).WithPath(path)
	u.StoreID = id
	b.logger.Debug("unit compiled", "path", path, "rounds", stats.Rounds, "diagnostics", len(u.Diagnostics))

	if b.cache != nil && len(u.Diagnostics) == 0 {
		data, err := interchange.Encode(u.Store, u.StoreID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		st, err := json.Marshal(u.Stats)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entry := cache.Entry{Key: key, Path: path, StoreID: u.StoreID, Data: data, Stats: st}
		if err := b.cache.Put(ctx, entry); err != nil {
			b.logger.Warn("cache write failed", "path", path, "error", err)
		}
	}
	return u, nil
}

// load fills u from the cache and reports whether it did. Read failures
// and corrupt entries fall back to compiling.
func (u *Unit) load(ctx context.Context, c *cache.Cache, logger *slog.Logger) bool {
	if c == nil {
		return false
	}
	e, ok, err := c.Get(ctx, u.Key)
	if err != nil {
		logger.Warn("cache read failed", "path", u.Path, "error", err)
		return false
	}
	if !ok {
		return false
	}
	s, h, err := interchange.Decode(e.Data)
	if err != nil {
		logger.Warn("ignoring corrupt cache entry", "path", u.Path, "error", err)
		return false
	}
	var stats optimize.Stats
	if err := json.Unmarshal(e.Stats, &stats); err != nil {
		logger.Warn("ignoring corrupt cache entry", "path", u.Path, "error", err)
		return false
	}
	u.Store = s
	u.StoreID = h.StoreID
	u.Cached = true
	u.Stats = stats
	logger.Debug("unit loaded from cache", "path", u.Path, "rounds", stats.Rounds)
	return true
}
