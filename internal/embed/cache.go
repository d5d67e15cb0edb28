package embed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docvar/internal/segment"
)

// Cache persists chunk+embedding lists per document fingerprint so re-runs
// on the same document skip the embedding service entirely. Entries are
// keyed by fingerprint only; a changed document with the same basename will
// reuse its stale entry.
type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Fingerprint derives the cache key for a document path from its basename.
func Fingerprint(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return sanitizeKey(base)
}

type cacheEntry struct {
	Chunks []segment.Chunk `json:"text_chunks_w_embeddings"`
}

// Load returns the cached chunks for a fingerprint, or ok=false on a miss.
func (c *Cache) Load(fingerprint string) ([]segment.Chunk, bool, error) {
	data, err := os.ReadFile(c.path(fingerprint))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", fingerprint, err)
	}
	return entry.Chunks, true, nil
}

// Store writes the chunks atomically (write temp, then rename).
func (c *Cache) Store(fingerprint string, chunks []segment.Chunk) error {
	data, err := json.Marshal(cacheEntry{Chunks: chunks})
	if err != nil {
		return err
	}
	tmp := c.path(fingerprint) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(fingerprint))
}

func (c *Cache) path(fingerprint string) string {
	return filepath.Join(c.dir, sanitizeKey(fingerprint)+".json")
}

func sanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
