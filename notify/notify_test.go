package notify

import (
	"bytes"
	"testing"
)

func TestWriterFormatsByLevel(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{name: "info", n: Notification{Level: LevelInfo, Title: "Auto-translation", Message: "Next chapter is being prepared in the background"}, want: "* Auto-translation: Next chapter is being prepared in the background\n"},
		{name: "success", n: Notification{Level: LevelSuccess, Title: "Refreshed"}, want: "✓ Refreshed\n"},
		{name: "error", n: Notification{Level: LevelError, Title: "Error", Message: "boom"}, want: "! Error: boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewWriter(&buf).Notify(tt.n)
			if got := buf.String(); got != tt.want {
				t.Fatalf("Notify wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	rec.Notify(Notification{Level: LevelInfo, Title: "a"})
	rec.Notify(Notification{Level: LevelError, Title: "b"})
	rec.Notify(Notification{Level: LevelError, Title: "c"})

	if got := rec.Count(LevelError); got != 2 {
		t.Fatalf("Count(error) = %d, want 2", got)
	}
	all := rec.All()
	all[0].Title = "changed"
	if rec.All()[0].Title != "a" {
		t.Fatalf("All should return a copy")
	}
}
