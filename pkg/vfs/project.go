package vfs

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("file already exists")
	ErrTextNotFound = errors.New("text not found in file")
)

// Project holds a project's virtual file set. Only tool handlers mutate it
// during a session; the orchestrator and API observe it read-only. The
// mutex guards against observers racing a running session, not against
// concurrent tool execution (tool calls are dispatched sequentially).
type Project struct {
	id string

	mu    sync.RWMutex
	files map[string]types.FileRecord // keyed by normalized path
}

// NewProject creates an empty project file set.
func NewProject(id string) *Project {
	return &Project{
		id:    id,
		files: make(map[string]types.FileRecord),
	}
}

func (p *Project) ID() string {
	return p.id
}

// Create adds a new file. Fails if the path already exists.
func (p *Project) Create(filePath, content string) (types.FileRecord, error) {
	normalized, err := NormalizePath(filePath)
	if err != nil {
		return types.FileRecord{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.files[normalized]; exists {
		return types.FileRecord{}, fmt.Errorf("%w: %s", ErrFileExists, normalized)
	}

	now := time.Now()
	rec := types.FileRecord{
		ID:        types.GenerateFileID(),
		Path:      normalized,
		Name:      path.Base(normalized),
		Content:   content,
		MimeType:  mimeTypeFor(normalized),
		Size:      int64(len(content)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.files[normalized] = rec
	return rec, nil
}

// Read returns the file at the given path.
func (p *Project) Read(filePath string) (types.FileRecord, error) {
	normalized, err := NormalizePath(filePath)
	if err != nil {
		return types.FileRecord{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.files[normalized]
	if !ok {
		return types.FileRecord{}, fmt.Errorf("%w: %s", ErrFileNotFound, normalized)
	}
	return rec, nil
}

// Update replaces the content of an existing file.
func (p *Project) Update(filePath, content string) (types.FileRecord, error) {
	normalized, err := NormalizePath(filePath)
	if err != nil {
		return types.FileRecord{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.files[normalized]
	if !ok {
		return types.FileRecord{}, fmt.Errorf("%w: %s", ErrFileNotFound, normalized)
	}
	rec.Content = content
	rec.Size = int64(len(content))
	rec.UpdatedAt = time.Now()
	p.files[normalized] = rec
	return rec, nil
}

// ReplaceOnce replaces the first occurrence of oldText with newText in a
// file. Returns ErrTextNotFound when oldText is absent.
func (p *Project) ReplaceOnce(filePath, oldText, newText string) (types.FileRecord, error) {
	normalized, err := NormalizePath(filePath)
	if err != nil {
		return types.FileRecord{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.files[normalized]
	if !ok {
		return types.FileRecord{}, fmt.Errorf("%w: %s", ErrFileNotFound, normalized)
	}
	idx := strings.Index(rec.Content, oldText)
	if idx < 0 {
		return types.FileRecord{}, fmt.Errorf("%w: %s", ErrTextNotFound, normalized)
	}
	rec.Content = rec.Content[:idx] + newText + rec.Content[idx+len(oldText):]
	rec.Size = int64(len(rec.Content))
	rec.UpdatedAt = time.Now()
	p.files[normalized] = rec
	return rec, nil
}

// Delete removes a file.
func (p *Project) Delete(filePath string) error {
	normalized, err := NormalizePath(filePath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.files[normalized]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, normalized)
	}
	delete(p.files, normalized)
	return nil
}

// List returns all files sorted by path. When pattern is non-empty, only
// paths matching the doublestar glob are returned.
func (p *Project) List(pattern string) ([]types.FileRecord, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []types.FileRecord
	for _, rec := range p.files {
		if pattern != "" {
			ok, err := doublestar.Match(pattern, rec.Path)
			if err != nil {
				return nil, fmt.Errorf("glob match: %w", err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// SearchMatch is one content hit from Search.
type SearchMatch struct {
	Path string
	Line int
	Text string
}

// Search scans every file for a case-insensitive substring and returns
// line-level matches.
func (p *Project) Search(query string) []SearchMatch {
	p.mu.RLock()
	defer p.mu.RUnlock()

	lowered := strings.ToLower(query)
	var matches []SearchMatch
	for _, rec := range p.files {
		for i, line := range strings.Split(rec.Content, "\n") {
			if strings.Contains(strings.ToLower(line), lowered) {
				matches = append(matches, SearchMatch{Path: rec.Path, Line: i + 1, Text: line})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Line < matches[j].Line
	})
	return matches
}

// Snapshot returns a deep copy of the file set, sorted by path, for
// checkpointing.
func (p *Project) Snapshot() []types.FileRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.FileRecord, 0, len(p.files))
	for _, rec := range p.files {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Restore replaces the entire file set with the given snapshot.
func (p *Project) Restore(files []types.FileRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.files = make(map[string]types.FileRecord, len(files))
	for _, rec := range files {
		p.files[rec.Path] = rec
	}
}

// Tree renders an indented directory tree of the file set, used in the
// planner's project summary.
func (p *Project) Tree() string {
	files := p.Snapshot()
	if len(files) == 0 {
		return "(empty project)"
	}

	var sb strings.Builder
	lastDir := ""
	for _, rec := range files {
		dir := path.Dir(rec.Path)
		if dir != lastDir && dir != "." {
			fmt.Fprintf(&sb, "%s/\n", dir)
			lastDir = dir
		}
		indent := ""
		if dir != "." {
			indent = "  "
		}
		fmt.Fprintf(&sb, "%s%s (%d bytes)\n", indent, rec.Name, rec.Size)
	}
	return sb.String()
}

func mimeTypeFor(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js", ".mjs":
		return "text/javascript"
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	case ".svg":
		return "image/svg+xml"
	default:
		return "text/plain"
	}
}
