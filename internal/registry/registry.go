// Package registry holds the stat, title, set and achievement definitions
// loaded from YAML. Readers always see one consistent Catalog.
package registry

import (
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
)

type Registry struct {
	current atomic.Pointer[Catalog]
	dir     string
	logger  zerolog.Logger

	mu        sync.Mutex
	listeners []func(*Catalog)
}

// New returns a Registry serving c. Reload is unavailable when dir is empty.
func New(c *Catalog, dir string, logger zerolog.Logger) *Registry {
	r := &Registry{
		dir:    dir,
		logger: logger.With().Str("component", "registry").Logger(),
	}
	if c == nil {
		c = Empty()
	}
	r.current.Store(c)
	return r
}

// NewFromConfig loads the catalog found in cfg.RegistryDir. Bad entries are
// logged and skipped so startup never fails on them.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger) *Registry {
	r := New(nil, cfg.RegistryDir, logger)
	r.Reload()
	return r
}

func (r *Registry) Catalog() *Catalog {
	return r.current.Load()
}

// OnReload registers fn to run after every catalog swap.
func (r *Registry) OnReload(fn func(*Catalog)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Replace swaps in c and notifies listeners.
func (r *Registry) Replace(c *Catalog) {
	r.mu.Lock()
	r.current.Store(c)
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
}

// Reload re-reads the registry directory and swaps the result in. The
// returned problems were already logged.
func (r *Registry) Reload() []error {
	if r.dir == "" {
		return nil
	}
	c, problems := Load(os.DirFS(r.dir), r.logger)
	r.Replace(c)
	r.logger.Info().
		Int("stats", len(c.stats)).
		Int("titles", len(c.titles)).
		Int("sets", len(c.sets)).
		Int("achievements", len(c.achievements)).
		Int("problems", len(problems)).
		Msg("registry loaded")
	return problems
}
