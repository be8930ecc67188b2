// Package prefs persists recent search terms and reader display settings.
package prefs

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/arcane-translator/arcane-reader/storage"
)

const (
	RecentSearchesKey = "recent_searches"
	ReaderPrefsKey    = "reader_preferences"

	MaxRecentSearches = 5

	MinFontSize = 14
	MaxFontSize = 24
)

// Theme is a reader colour scheme.
type Theme string

const (
	ThemeSepia Theme = "sepia"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ReaderPrefs are the display settings of the reading view.
type ReaderPrefs struct {
	Theme      Theme   `json:"theme"`
	FontSize   int     `json:"fontSize"`
	LineHeight float64 `json:"lineHeight"`
}

// DefaultReaderPrefs mirrors the reader's initial state.
func DefaultReaderPrefs() ReaderPrefs {
	return ReaderPrefs{Theme: ThemeSepia, FontSize: 18, LineHeight: 1.6}
}

// Normalize clamps the font size and replaces unknown values with defaults.
func (p ReaderPrefs) Normalize() ReaderPrefs {
	def := DefaultReaderPrefs()
	switch p.Theme {
	case ThemeSepia, ThemeLight, ThemeDark:
	default:
		p.Theme = def.Theme
	}
	if p.FontSize == 0 {
		p.FontSize = def.FontSize
	}
	p.FontSize = min(max(p.FontSize, MinFontSize), MaxFontSize)
	if p.LineHeight <= 0 {
		p.LineHeight = def.LineHeight
	}
	return p
}

// Prefs reads once and writes through on every change.
type Prefs struct {
	kv storage.Store
}

// New wraps kv.
func New(kv storage.Store) *Prefs {
	return &Prefs{kv: kv}
}

// RecentSearches returns up to MaxRecentSearches terms, most recent first.
func (p *Prefs) RecentSearches() []string {
	var terms []string
	if !p.read(RecentSearchesKey, &terms) {
		return []string{}
	}
	if len(terms) > MaxRecentSearches {
		terms = terms[:MaxRecentSearches]
	}
	return terms
}

// AddRecentSearch moves term to the front, dropping duplicates and the oldest
// entries beyond the cap.
func (p *Prefs) AddRecentSearch(term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return p.RecentSearches()
	}
	terms := []string{term}
	for _, existing := range p.RecentSearches() {
		if strings.EqualFold(existing, term) {
			continue
		}
		terms = append(terms, existing)
		if len(terms) == MaxRecentSearches {
			break
		}
	}
	p.write(RecentSearchesKey, terms)
	return terms
}

// ClearRecentSearches forgets all terms.
func (p *Prefs) ClearRecentSearches() {
	if err := p.kv.Delete(RecentSearchesKey); err != nil {
		slog.Error("clear recent searches", slog.Any("error", err))
	}
}

// Reader returns the stored display settings or the defaults.
func (p *Prefs) Reader() ReaderPrefs {
	prefs := DefaultReaderPrefs()
	if !p.read(ReaderPrefsKey, &prefs) {
		return DefaultReaderPrefs()
	}
	return prefs.Normalize()
}

// SetReader normalizes and stores prefs.
func (p *Prefs) SetReader(prefs ReaderPrefs) ReaderPrefs {
	prefs = prefs.Normalize()
	p.write(ReaderPrefsKey, prefs)
	return prefs
}

func (p *Prefs) read(key string, dst any) bool {
	raw, err := p.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		slog.Error("read preference", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.Error("decode preference", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (p *Prefs) write(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("encode preference", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := p.kv.Set(key, string(data)); err != nil {
		slog.Error("write preference", slog.String("key", key), slog.Any("error", err))
	}
}
