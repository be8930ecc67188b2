package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arcane-translator/arcane-reader/models"
)

func testNovel() *models.Novel {
	return &models.Novel{
		ID:            "lotm",
		Title:         "Lord of the Mysteries",
		OriginalTitle: "诡秘之主",
		Author:        "Cuttlefish That Loves Diving",
		Source:        "69shu",
		Status:        "Completed",
		Genres:        []string{"Fantasy", "Mystery"},
		ChaptersCount: 1432,
		URL:           "https://www.69shu.com/book/12345/",
		LastUpdated:   time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC).Unix(),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "novels.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write([]*models.Novel{testNovel()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "title" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[2] != "诡秘之主" || row[6] != "Fantasy|Mystery" || row[7] != "1432" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[9] != "2025-11-04T13:09:13Z" {
		t.Fatalf("last_updated = %q", row[9])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "novels.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write([]*models.Novel{testNovel(), testNovel()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded struct {
			ID            string   `json:"id"`
			OriginalTitle string   `json:"original_title"`
			Genres        []string `json:"genres"`
			ChaptersCount int      `json:"chapters_count"`
			LastUpdated   string   `json:"last_updated"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.ID != "lotm" || decoded.OriginalTitle != "诡秘之主" || decoded.ChaptersCount != 1432 {
			t.Fatalf("decoded = %+v", decoded)
		}
		if len(decoded.Genres) != 2 || decoded.Genres[1] != "Mystery" {
			t.Fatalf("genres = %v, want a two-element array", decoded.Genres)
		}
		if decoded.LastUpdated != "2025-11-04T13:09:13Z" {
			t.Fatalf("last_updated = %q", decoded.LastUpdated)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 2 {
		t.Fatalf("json lines=%d, want 2", count)
	}
}

func TestCSVWriterLeavesUnknownUpdateTimeEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novels.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	n := testNovel()
	n.LastUpdated = 0
	n.Genres = nil
	if err := writer.Write([]*models.Novel{n}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if row := records[1]; row[6] != "" || row[9] != "" {
		t.Fatalf("genres=%q last_updated=%q, want both empty", row[6], row[9])
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "novels.csv")
	jsonPath := filepath.Join(dir, "novels.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write([]*models.Novel{testNovel()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}
