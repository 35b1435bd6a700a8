package threads

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mcpdeck/internal/collections"
	"mcpdeck/internal/fileutil"
)

// ThreadSnapshot is the on-disk mirror of one thread and its messages.
type ThreadSnapshot struct {
	Thread   Thread    `json:"thread"`
	Messages []Message `json:"messages"`
	SavedAt  time.Time `json:"saved_at"`
}

// Mirror keeps a local offline copy of threads keyed by scope+id, so recent
// conversations stay readable when the gateway is unreachable. Writes are
// best-effort and atomic.
type Mirror struct {
	dir string
}

// NewMirror opens the mirror directory for a scope under dataDir.
func NewMirror(dataDir string, scope collections.Scope) (*Mirror, error) {
	dir := filepath.Join(dataDir, "threads", sanitize(scope.Key()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Mirror{dir: dir}, nil
}

// Save writes the snapshot for a thread.
func (m *Mirror) Save(thread Thread, messages []Message) error {
	snap := ThreadSnapshot{
		Thread:   thread,
		Messages: messages,
		SavedAt:  time.Now(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.AtomicWrite(m.path(thread.ID), data, 0644)
}

// Load reads the snapshot for a thread id, if mirrored.
func (m *Mirror) Load(id string) (*ThreadSnapshot, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		return nil, err
	}
	var snap ThreadSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns the thread ids present in the mirror.
func (m *Mirror) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// Delete removes a thread's snapshot.
func (m *Mirror) Delete(id string) error {
	err := os.Remove(m.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (m *Mirror) path(id string) string {
	return filepath.Join(m.dir, sanitize(id)+".json")
}

var pathSanitizer = strings.NewReplacer(":", "_", "/", "_", string(os.PathSeparator), "_")

func sanitize(s string) string {
	return pathSanitizer.Replace(s)
}
