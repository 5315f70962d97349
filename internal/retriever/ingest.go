package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IngestOptions controls how reference documents are split.
type IngestOptions struct {
	ChunkSize    int      // characters per chunk, default 800
	ChunkOverlap int      // characters shared by neighbouring chunks, default 80
	Extensions   []string // default .txt and .md
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 800
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = o.ChunkSize / 10
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".txt", ".md"}
	}
	return o
}

// IngestDir chunks every matching file under dir and hands the passages to
// idx.  Each passage's source id is the file path relative to dir.  It
// returns the number of passages indexed.
func IngestDir(ctx context.Context, idx Indexer, dir string, opts IngestOptions) (int, error) {
	opts = opts.withDefaults()
	var passages []Passage
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !hasExtension(path, opts.Extensions) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		passages = append(passages, ChunkText(filepath.ToSlash(rel), string(data), opts.ChunkSize, opts.ChunkOverlap)...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := idx.AddPassages(ctx, passages); err != nil {
		return 0, err
	}
	return len(passages), nil
}

// ChunkText splits content into overlapping chunks of at most size
// characters, breaking at the last space inside each window when there is
// one.  Windows are counted in runes so a chunk never splits a character.
func ChunkText(sourceID, content string, size, overlap int) []Passage {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []Passage
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			if lastSpace := lastSpaceIndex(runes[start:end]); lastSpace > 0 {
				end = start + lastSpace
			}
		}

		if text := strings.TrimSpace(string(runes[start:end])); text != "" {
			chunks = append(chunks, Passage{
				ID:       chunkID(sourceID, len(chunks)),
				SourceID: sourceID,
				Text:     text,
			})
		}
		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastSpaceIndex(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return i
		}
	}
	return -1
}

func chunkID(sourceID string, index int) string {
	hash := sha256.Sum256([]byte(sourceID + "#" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:8])
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
