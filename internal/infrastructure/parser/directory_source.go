package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// DirectorySource serves HTML transcript exports from a local directory.
// A document's ID is its file name without extension.
type DirectorySource struct {
	dir    string
	logger *slog.Logger
}

var _ ports.DocumentSource = (*DirectorySource)(nil)

// NewDirectorySource wires a directory of *.html exports.
func NewDirectorySource(dir string, log *slog.Logger) *DirectorySource {
	return &DirectorySource{dir: dir, logger: log}
}

// Name identifies the strategy inside the source registry.
func (s *DirectorySource) Name() string {
	return "directory"
}

// ListRecent parses every export and returns the newest first. Creation time comes
// from <meta name="created">, falling back to the file modification time.
func (s *DirectorySource) ListRecent(ctx context.Context, pageSize int) ([]domain.Document, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%w: transcript directory is not configured", domain.ErrConfiguration)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read transcript directory: %v", domain.ErrTransientExternal, err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok := documentID(entry)
		if !ok {
			continue
		}
		doc, err := s.load(id, entry.Name())
		if err != nil {
			s.debug("skip unreadable transcript", "file", entry.Name(), "error", err)
			continue
		}
		doc.Blocks = nil
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if pageSize > 0 && len(docs) > pageSize {
		docs = docs[:pageSize]
	}

	s.debug("directory source listed", "dir", s.dir, "count", len(docs))
	return docs, nil
}

// GetDocument returns metadata for one export.
func (s *DirectorySource) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	file, err := s.resolve(id)
	if err != nil {
		return domain.Document{}, err
	}
	doc, err := s.load(id, file)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Blocks = nil
	return doc, nil
}

// FetchBlocks returns the parsed body of one export.
func (s *DirectorySource) FetchBlocks(ctx context.Context, id string) ([]domain.Block, error) {
	file, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.load(id, file)
	if err != nil {
		return nil, err
	}
	return doc.Blocks, nil
}

func (s *DirectorySource) resolve(id string) (string, error) {
	if s.dir == "" {
		return "", fmt.Errorf("%w: transcript directory is not configured", domain.ErrConfiguration)
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: invalid document id %q", domain.ErrValidation, id)
	}
	for _, ext := range []string{".html", ".htm"} {
		name := id + ext
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
}

func (s *DirectorySource) load(id, name string) (domain.Document, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		return domain.Document{}, fmt.Errorf("%w: open %s: %v", domain.ErrTransientExternal, name, err)
	}
	defer f.Close()

	transcript, err := ParseTranscript(f)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%s: %w", name, err)
	}

	created := transcript.CreatedAt
	if created.IsZero() {
		info, err := f.Stat()
		if err != nil {
			return domain.Document{}, fmt.Errorf("stat %s: %w", name, err)
		}
		created = info.ModTime().UTC()
	}

	title := transcript.Title
	if title == "" {
		title = id
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return domain.Document{
		ID:        id,
		Title:     title,
		URL:       "file://" + filepath.ToSlash(abs),
		CreatedAt: created,
		Blocks:    transcript.Blocks,
	}, nil
}

func documentID(entry fs.DirEntry) (string, bool) {
	if entry.IsDir() {
		return "", false
	}
	name := entry.Name()
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".html" && ext != ".htm" {
		return "", false
	}
	return strings.TrimSuffix(name, filepath.Ext(name)), true
}

func (s *DirectorySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
