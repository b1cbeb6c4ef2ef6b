package worktree

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/zhubert/plural-worktrees/config"
)

// ErrUnreadableMetadata is returned when a metadata file exists but cannot be
// parsed. Listings treat such a worktree as absent.
var ErrUnreadableMetadata = errors.New("unreadable worktree metadata")

// Metadata is the durable record kept in each worktree directory. Every field
// is optional on read; missing or mistyped values take their zero value.
type Metadata struct {
	ID               string    `json:"id"`
	TaskDescription  string    `json:"taskDescription"`
	BaseBranch       string    `json:"baseBranch"`
	CreatedAt        time.Time `json:"createdAt"`
	ClaudeSessionID  *string   `json:"claudeSessionId"`
	Title            string    `json:"title,omitempty"`
	SessionWasActive bool      `json:"sessionWasActive,omitempty"`
	WasJob           bool      `json:"wasJob,omitempty"`
	LastIteration    int       `json:"lastIteration,omitempty"`
	JobMaxIterations int       `json:"jobMaxIterations,omitempty"`
}

// createdAtLayouts are tried in order; files written by other tools may omit
// the zone or fractional seconds.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func metadataPath(dir string) string {
	return filepath.Join(dir, config.MetadataFileName)
}

// ReadMetadata loads the metadata file in dir. It returns an error satisfying
// os.IsNotExist when the file is missing and one wrapping
// ErrUnreadableMetadata when it cannot be parsed.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(metadataPath(dir))
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableMetadata, metadataPath(dir), err)
	}
	if meta.ID == "" {
		meta.ID = filepath.Base(dir)
	}
	return meta, nil
}

// decodeMetadata accepts JSON with comments and trailing commas, matches keys
// case-insensitively and ignores values of the wrong type.
func decodeMetadata(data []byte) (*Metadata, error) {
	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("metadata is not a JSON object")
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[strings.ToLower(k)] = v
	}

	meta := &Metadata{
		ID:               stringField(fields, "id"),
		TaskDescription:  stringField(fields, "taskdescription"),
		BaseBranch:       stringField(fields, "basebranch"),
		CreatedAt:        timeField(fields, "createdat"),
		Title:            stringField(fields, "title"),
		SessionWasActive: boolField(fields, "sessionwasactive"),
		WasJob:           boolField(fields, "wasjob"),
		LastIteration:    intField(fields, "lastiteration"),
		JobMaxIterations: intField(fields, "jobmaxiterations"),
	}
	if id := stringField(fields, "claudesessionid"); id != "" {
		meta.ClaudeSessionID = &id
	}
	return meta, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func boolField(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

func intField(fields map[string]any, key string) int {
	f, _ := fields[key].(float64)
	return int(f)
}

func timeField(fields map[string]any, key string) time.Time {
	s := stringField(fields, key)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// WriteMetadata writes meta to dir as indented JSON, replacing any existing
// file atomically.
func WriteMetadata(dir string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	data = append(data, '\n')
	if err := atomicWriteFile(metadataPath(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// updateMetadata applies fn to the metadata in dir and writes it back. It
// reports false without error when there is no metadata file.
func updateMetadata(dir string, fn func(*Metadata)) (bool, error) {
	meta, err := ReadMetadata(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	fn(meta)
	if err := WriteMetadata(dir, meta); err != nil {
		return false, err
	}
	return true, nil
}

// atomicWriteFile writes data to a temporary file in the target directory and
// renames it over path, so readers never observe a partial file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err = os.Chmod(tmpPath, perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
