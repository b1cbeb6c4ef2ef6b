package worktree

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name         string
		hasChanges   bool
		commitsAhead int
		want         WorktreeStatus
	}{
		{"changes and no commits", true, 0, StatusHasChanges},
		{"changes and commits", true, 3, StatusHasChanges},
		{"clean with one commit", false, 1, StatusReadyToMerge},
		{"clean with many commits", false, 12, StatusReadyToMerge},
		{"clean at base", false, 0, StatusActive},
		{"negative count treated as none", false, -1, StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.hasChanges, tt.commitsAhead); got != tt.want {
				t.Errorf("DeriveStatus(%v, %d) = %v, want %v", tt.hasChanges, tt.commitsAhead, got, tt.want)
			}
		})
	}
}

func TestWorktreeStatus_String(t *testing.T) {
	names := map[WorktreeStatus]string{
		StatusActive:       "Active",
		StatusHasChanges:   "HasChanges",
		StatusReadyToMerge: "ReadyToMerge",
		StatusMerged:       "Merged",
		StatusLocked:       "Locked",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
}

func TestWriteAndReadMetadata(t *testing.T) {
	dir := t.TempDir()
	created := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	meta := &Metadata{
		ID:              "ab12cd34",
		TaskDescription: "add login page",
		BaseBranch:      "main",
		CreatedAt:       created,
	}
	if err := WriteMetadata(dir, meta); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}

	data, err := os.ReadFile(metadataPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "\n  \"taskDescription\": \"add login page\"") {
		t.Errorf("metadata not indented camelCase JSON:\n%s", content)
	}
	if !strings.Contains(content, `"claudeSessionId": null`) {
		t.Errorf("missing session id should be written as null:\n%s", content)
	}

	got, err := ReadMetadata(dir)
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if got.ID != meta.ID || got.TaskDescription != meta.TaskDescription || got.BaseBranch != "main" {
		t.Errorf("round trip = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.ClaudeSessionID != nil {
		t.Errorf("ClaudeSessionID = %v, want nil", *got.ClaudeSessionID)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the metadata file, got %d entries", len(entries))
	}
}

func TestReadMetadata_Tolerant(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ef56ab78")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	// Comments, trailing commas, PascalCase keys, a zone-less timestamp,
	// a mistyped field and an unknown field
	content := `{
  // written by hand
  "TaskDescription": "fix crash",
  "BaseBranch": "develop",
  "CreatedAt": "2026-01-02T03:04:05.1234567",
  "ClaudeSessionId": "sess-1",
  "lastIteration": "seven",
  "jobMaxIterations": 10,
  "wasJob": true,
  "somethingNew": {"nested": [1, 2, 3]},
}`
	if err := os.WriteFile(metadataPath(dir), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadMetadata(dir)
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if got.ID != "ef56ab78" {
		t.Errorf("ID = %q, want directory name", got.ID)
	}
	if got.TaskDescription != "fix crash" || got.BaseBranch != "develop" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.Year() != 2026 || got.CreatedAt.Second() != 5 {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
	if got.ClaudeSessionID == nil || *got.ClaudeSessionID != "sess-1" {
		t.Errorf("ClaudeSessionID = %v", got.ClaudeSessionID)
	}
	if got.LastIteration != 0 || got.JobMaxIterations != 10 || !got.WasJob {
		t.Errorf("job fields = %d/%d/%v", got.LastIteration, got.JobMaxIterations, got.WasJob)
	}
}

func TestReadMetadata_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadMetadata(dir); !os.IsNotExist(err) {
		t.Errorf("missing file: err = %v, want not-exist", err)
	}

	for _, content := range []string{"{not json", "[1, 2]", "null", ""} {
		if err := os.WriteFile(metadataPath(dir), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadMetadata(dir); !errors.Is(err, ErrUnreadableMetadata) {
			t.Errorf("content %q: err = %v, want ErrUnreadableMetadata", content, err)
		}
	}
}

func TestUpdateMetadata(t *testing.T) {
	dir := t.TempDir()

	updated, err := updateMetadata(dir, func(m *Metadata) { m.Title = "x" })
	if err != nil || updated {
		t.Fatalf("absent file: updated=%v err=%v", updated, err)
	}
	if _, err := os.Stat(metadataPath(dir)); !os.IsNotExist(err) {
		t.Error("update must not create a metadata file")
	}

	if err := WriteMetadata(dir, &Metadata{ID: "a", TaskDescription: "task", BaseBranch: "main"}); err != nil {
		t.Fatal(err)
	}
	updated, err = updateMetadata(dir, func(m *Metadata) { m.Title = "Login" })
	if err != nil || !updated {
		t.Fatalf("updated=%v err=%v", updated, err)
	}
	got, _ := ReadMetadata(dir)
	if got.Title != "Login" || got.TaskDescription != "task" || got.BaseBranch != "main" {
		t.Errorf("other fields must survive an update: %+v", got)
	}
}

func TestCleanRelPath(t *testing.T) {
	valid := map[string]string{
		"main.go":          "main.go",
		"src/../main.go":   "main.go",
		"./src/util.go":    "src/util.go",
		"src//nested/x.go": "src/nested/x.go",
	}
	for in, want := range valid {
		got, err := cleanRelPath(in)
		if err != nil || got != want {
			t.Errorf("cleanRelPath(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", ".", "..", "../etc/passwd", "/etc/passwd", "src/../../x"} {
		if _, err := cleanRelPath(in); err == nil {
			t.Errorf("cleanRelPath(%q) should fail", in)
		}
	}
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"ab12cd34", "x"} {
		if !validID(id) {
			t.Errorf("validID(%q) = false", id)
		}
	}
	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if validID(id) {
			t.Errorf("validID(%q) = true", id)
		}
	}
}
