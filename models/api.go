package models

// NovelRequest asks the backend to scrape and translate a novel's main page.
type NovelRequest struct {
	URL         string  `json:"url"`
	Source      string  `json:"source"`
	HTMLContent *string `json:"html_content"`
}

// ChapterTranslationRequest asks the backend to translate one chapter.
type ChapterTranslationRequest struct {
	NovelID       string  `json:"novel_id"`
	ChapterNumber int     `json:"chapter_number"`
	ChapterURL    string  `json:"chapter_url,omitempty"`
	HTMLContent   *string `json:"html_content"`
}

// TranslatedChapter is the backend's answer to a chapter translation.
type TranslatedChapter struct {
	TranslatedChapterTitle    string   `json:"translated_chapter_title"`
	OriginalChapterTitle      string   `json:"original_chapter_title,omitempty"`
	TranslatedChapterContents string   `json:"translated_chapter_contents"`
	PossibleNewGenres         []string `json:"possible_new_genres,omitempty"`
}

// FirstChapterRequest sets the URL of a novel's first chapter.
type FirstChapterRequest struct {
	NovelID     string  `json:"novel_id"`
	ChapterURL  string  `json:"chapter_url"`
	HTMLContent *string `json:"html_content"`
}

// FirstChapterResponse reports the outcome of a first chapter setup.
type FirstChapterResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	FirstChapterURL   string `json:"firstChapterUrl,omitempty"`
	URLPattern        string `json:"urlPattern,omitempty"`
	ChapterTranslated bool   `json:"chapterTranslated,omitempty"`
}

// RefreshRequest asks the backend to re-scrape a novel's details.
type RefreshRequest struct {
	NovelID     string  `json:"novel_id"`
	HTMLContent *string `json:"html_content"`
}

// RefreshResponse reports what a refresh found.
type RefreshResponse struct {
	Success          bool   `json:"success"`
	NewChaptersCount int    `json:"newChaptersCount"`
	Message          string `json:"message"`
	UpdatedDetails   struct {
		Summary string   `json:"summary"`
		Author  string   `json:"author"`
		Status  string   `json:"status"`
		Genres  []string `json:"genres"`
	} `json:"updatedDetails"`
}
