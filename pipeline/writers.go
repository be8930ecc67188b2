package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arcane-translator/arcane-reader/models"
)

// record is the exported shape of a novel. Both formats use the same field
// names so a CSV column and a JSON key always agree.
type record struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title,omitempty"`
	Author        string   `json:"author,omitempty"`
	Source        string   `json:"source"`
	Status        string   `json:"status,omitempty"`
	Genres        []string `json:"genres"`
	ChaptersCount int      `json:"chapters_count"`
	URL           string   `json:"url,omitempty"`
	LastUpdated   string   `json:"last_updated,omitempty"`
}

var csvHeader = []string{"id", "title", "original_title", "author", "source", "status", "genres", "chapters_count", "url", "last_updated"}

// genreSeparator joins genres into one CSV cell.
const genreSeparator = "|"

func toRecord(n *models.Novel) record {
	r := record{
		ID:            n.ID,
		Title:         n.Title,
		OriginalTitle: n.OriginalTitle,
		Author:        n.Author,
		Source:        n.Source,
		Status:        n.Status,
		Genres:        n.Genres,
		ChaptersCount: n.ChaptersCount,
		URL:           n.URL,
	}
	if r.Genres == nil {
		r.Genres = []string{}
	}
	if n.LastUpdated > 0 {
		r.LastUpdated = n.LastUpdatedTime().UTC().Format(time.RFC3339)
	}
	return r
}

func (r record) csvRow() []string {
	return []string{
		r.ID,
		r.Title,
		r.OriginalTitle,
		r.Author,
		r.Source,
		r.Status,
		strings.Join(r.Genres, genreSeparator),
		strconv.Itoa(r.ChaptersCount),
		r.URL,
		r.LastUpdated,
	}
}

// exportFile is the file behind one writer.
type exportFile struct {
	kind string
	file *os.File
}

func createExportFile(kind, filename string) (*exportFile, error) {
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", kind, err)
	}
	return &exportFile{kind: kind, file: f}, nil
}

// validate fails when nothing reached the file.
func (e *exportFile) validate() error {
	info, err := e.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", e.kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file %s is empty", e.kind, e.file.Name())
	}
	return nil
}

// CSVWriter writes one row per novel under a fixed header.
type CSVWriter struct {
	out    *exportFile
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := createExportFile("csv", filename)
	if err != nil {
		return nil, err
	}

	cw := &CSVWriter{out: out, writer: csv.NewWriter(out.file)}
	if err := cw.writeRows([][]string{csvHeader}); err != nil {
		out.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends novels. Genres share one cell, separated by "|".
func (cw *CSVWriter) Write(novels []*models.Novel) error {
	rows := make([][]string, 0, len(novels))
	for _, n := range novels {
		rows = append(rows, toRecord(n).csvRow())
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if err := cw.writeRows(rows); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

func (cw *CSVWriter) writeRows(rows [][]string) error {
	if err := cw.writer.WriteAll(rows); err != nil {
		return err
	}
	return cw.writer.Error()
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.out.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.out.file.Close()
}

// Validate fails when the file holds nothing, not even the header.
func (cw *CSVWriter) Validate() error {
	return cw.out.validate()
}

// JSONWriter writes one JSON object per line. Genres stay an array.
type JSONWriter struct {
	out     *exportFile
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates filename for JSON lines output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := createExportFile("json", filename)
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriter(out.file)
	encoder := json.NewEncoder(buf)
	// Titles routinely carry "&" and "<"; keep them readable.
	encoder.SetEscapeHTML(false)
	return &JSONWriter{out: out, buf: buf, encoder: encoder}, nil
}

// Write appends one line per novel.
func (jw *JSONWriter) Write(novels []*models.Novel) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, n := range novels {
		if err := jw.encoder.Encode(toRecord(n)); err != nil {
			return fmt.Errorf("encode novel %s: %w", n.ID, err)
		}
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.buf.Flush(); err != nil {
		jw.out.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.out.file.Close()
}

// Validate fails when no novel was written.
func (jw *JSONWriter) Validate() error {
	return jw.out.validate()
}
