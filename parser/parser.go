package parser

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/arcane-translator/arcane-reader/models"
)

// ErrInvalidURL is returned for URLs rejected before any network call.
var ErrInvalidURL = errors.New("invalid URL")

// ValidateNovelURL parses a novel's main page URL. It must be absolute
// http(s) with a host.
func ValidateNovelURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: Please enter a valid URL", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// ValidateChapterURL parses a chapter URL and checks it belongs to the same
// site as novelURL. Hosts match when they share a registrable domain, so
// www. and mobile subdomains are accepted.
func ValidateChapterURL(raw, novelURL string) (*url.URL, error) {
	chapter, err := ValidateNovelURL(raw)
	if err != nil {
		return nil, err
	}
	if novelURL == "" {
		return chapter, nil
	}
	novel, err := url.Parse(novelURL)
	if err != nil || novel.Hostname() == "" {
		return chapter, nil
	}
	if !SameSite(chapter.Hostname(), novel.Hostname()) {
		return nil, fmt.Errorf("%w: %s is not on the novel's site %s", ErrInvalidURL, chapter.Hostname(), novel.Hostname())
	}
	return chapter, nil
}

// SameSite reports whether two hostnames share a registrable domain.
func SameSite(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	da, errA := publicsuffix.EffectiveTLDPlusOne(a)
	db, errB := publicsuffix.EffectiveTLDPlusOne(b)
	if errA != nil || errB != nil {
		return false
	}
	return da == db
}

// ValidateNovel ensures a listed novel carries the fields an export needs.
func ValidateNovel(n *models.Novel) error {
	if n == nil {
		return fmt.Errorf("novel is nil")
	}
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("novel missing id")
	}
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("novel missing title for %s", n.ID)
	}
	return nil
}

// NormalizeGenres trims genre names and drops empty and repeated ones,
// keeping the first spelling.
func NormalizeGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if slices.ContainsFunc(out, func(seen string) bool { return strings.EqualFold(seen, g) }) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// NormalizeStatus maps the backend's free-form status text onto a short
// label.
func NormalizeStatus(status string) string {
	switch s := strings.ToLower(strings.TrimSpace(status)); {
	case s == "":
		return "Unknown"
	case strings.Contains(s, "complete"), strings.Contains(s, "finished"):
		return "Completed"
	case strings.Contains(s, "ongoing"), strings.Contains(s, "serial"):
		return "Ongoing"
	case strings.Contains(s, "hiatus"):
		return "Hiatus"
	default:
		return strings.TrimSpace(status)
	}
}
