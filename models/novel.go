// Package models defines the shapes exchanged with the translation backend.
package models

import "time"

// Language values reported for a source site.
const (
	LanguageChinese  = "Chinese"
	LanguageKorean   = "Korean"
	LanguageJapanese = "Japanese"
	LanguageOther    = "Other"
)

// Novel is a serialized work tracked by the backend.
type Novel struct {
	ID                    string   `csv:"id" json:"id"`
	Title                 string   `csv:"title" json:"title"`
	OriginalTitle         string   `csv:"original_title" json:"original_title,omitempty"`
	Cover                 string   `csv:"cover" json:"cover,omitempty"`
	Source                string   `csv:"source" json:"source"`
	URL                   string   `csv:"url" json:"url"`
	Summary               string   `csv:"summary" json:"summary"`
	Author                string   `csv:"author" json:"author,omitempty"`
	Status                string   `csv:"status" json:"status,omitempty"`
	Genres                []string `csv:"genres" json:"genres,omitempty"`
	ChaptersCount         int      `csv:"chapters_count" json:"chapters_count"`
	LastReadChapterNumber int      `csv:"last_read_chapter_number" json:"last_read_chapter_number,omitempty"`
	LastReadTimestamp     int64    `csv:"last_read_timestamp" json:"last_read_timestamp,omitempty"`
	LastUpdated           int64    `csv:"last_updated" json:"last_updated"`
	DateAdded             int64    `csv:"date_added" json:"date_added"`
}

// LastUpdatedTime converts the backend's unix timestamp.
func (n *Novel) LastUpdatedTime() time.Time {
	return time.Unix(n.LastUpdated, 0)
}

// Chapter is one numbered, translated unit of a novel.
type Chapter struct {
	ID             string `json:"id"`
	NovelID        string `json:"novel_id"`
	Number         int    `json:"number"`
	Title          string `json:"title"`
	OriginalTitle  string `json:"original_title,omitempty"`
	Content        string `json:"content"`
	DateTranslated int64  `json:"date_translated"`
	WordCount      int    `json:"word_count,omitempty"`
	URL            string `json:"url,omitempty"`
	NextChapterURL string `json:"next_chapter_url,omitempty"`
}

// SourceSite is an originating website a novel is scraped from.
type SourceSite struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Icon     string `json:"icon,omitempty"`
}

// NovelPage is one page of a listing as reported by the backend.
type NovelPage struct {
	Novels      []*Novel `json:"novels"`
	TotalCount  int      `json:"total_count"`
	CurrentPage int      `json:"current_page"`
	TotalPages  int      `json:"total_pages"`
}

// Stats holds library-wide counters.
type Stats struct {
	NovelCount   int `json:"novel_count"`
	ChapterCount int `json:"chapter_count"`
}
