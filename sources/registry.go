// Package sources caches the source sites known to the backend.
package sources

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/arcane-translator/arcane-reader/models"
)

// Flags shown next to a source.
const (
	FlagChinese  = "🇨🇳"
	FlagKorean   = "🇰🇷"
	FlagJapanese = "🇯🇵"
	FlagDefault  = "🌐"
)

// Lister fetches the source sites.
type Lister interface {
	Sources(ctx context.Context) ([]models.SourceSite, error)
}

// Registry holds the source sites once loaded. A failed load leaves an
// empty, loaded registry.
type Registry struct {
	lister Lister
	group  singleflight.Group

	mu     sync.RWMutex
	sites  []models.SourceSite
	flags  map[string]string
	loaded bool
}

// NewRegistry returns an unloaded registry backed by lister.
func NewRegistry(lister Lister) *Registry {
	return &Registry{lister: lister, flags: map[string]string{}}
}

// Load fetches the sites unless they are already loaded. Concurrent calls
// share one request.
func (r *Registry) Load(ctx context.Context) {
	if r.IsLoaded() {
		return
	}
	r.group.Do("sources", func() (any, error) {
		if r.IsLoaded() {
			return nil, nil
		}

		sites, err := r.lister.Sources(ctx)
		if err != nil {
			slog.Error("load source sites", slog.Any("error", err))
			sites = nil
		}

		flags := make(map[string]string, len(sites))
		for _, site := range sites {
			flags[site.ID] = languageFlag(site.Language)
		}

		r.mu.Lock()
		r.sites = sites
		r.flags = flags
		r.loaded = true
		r.mu.Unlock()

		slog.Debug("source sites loaded", slog.Int("count", len(sites)))
		return nil, nil
	})
}

// IsLoaded reports whether Load has completed, successfully or not.
func (r *Registry) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// All returns the loaded sites; empty before Load completes.
func (r *Registry) All() []models.SourceSite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SourceSite, len(r.sites))
	copy(out, r.sites)
	return out
}

// ByID returns the site with id.
func (r *Registry) ByID(id string) (models.SourceSite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, site := range r.sites {
		if site.ID == id {
			return site, true
		}
	}
	return models.SourceSite{}, false
}

// FlagFor returns the flag for a source id, or, for identifiers that are not
// registered ids, the flag whose language tokens appear in identifier.
func (r *Registry) FlagFor(identifier string) string {
	r.mu.RLock()
	flag, ok := r.flags[identifier]
	r.mu.RUnlock()
	if ok {
		return flag
	}

	lower := strings.ToLower(identifier)
	switch {
	case containsAny(lower, "chinese", "cn", "china"):
		return FlagChinese
	case containsAny(lower, "korean", "kr", "korea"):
		return FlagKorean
	case containsAny(lower, "japanese", "jp", "japan"):
		return FlagJapanese
	}
	return FlagDefault
}

func languageFlag(language string) string {
	switch strings.ToLower(language) {
	case "chinese":
		return FlagChinese
	case "korean":
		return FlagKorean
	case "japanese":
		return FlagJapanese
	}
	return FlagDefault
}

func containsAny(s string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
