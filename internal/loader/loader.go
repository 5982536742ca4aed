package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{"txt", "md", "pdf", "docx"}

// Skip records a file that was not loaded and why.
type Skip struct {
	Path string
	Err  error
}

func (s Skip) Error() string { return s.Path + ": " + s.Err.Error() }

func (s Skip) Unwrap() error { return s.Err }

type readFunc func(path string) (string, error)

// Loader reads supported files into documents.
type Loader struct {
	extensions map[string]struct{}
	readers    map[string]readFunc
	log        *slog.Logger
}

// New creates a loader accepting the given extensions (with or without a dot).
func New(extensions []string, logger *slog.Logger) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = logging.Discard()
	}
	l := &Loader{
		extensions: make(map[string]struct{}, len(extensions)),
		readers: map[string]readFunc{
			"txt":      readText,
			"md":       readText,
			"markdown": readText,
			"pdf":      readPDF,
			"docx":     readDOCX,
		},
		log: logger,
	}
	for _, ext := range extensions {
		l.extensions[normalizeExt(ext)] = struct{}{}
	}
	return l
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func format(ext string) string {
	if ext == "markdown" {
		return "md"
	}
	return ext
}

// Supported reports whether the path has an allowed extension with a known reader.
func (l *Loader) Supported(path string) bool {
	ext := normalizeExt(filepath.Ext(path))
	if _, ok := l.extensions[ext]; !ok {
		return false
	}
	_, ok := l.readers[ext]
	return ok
}

// Load reads a single file. Files outside the allow-list fail with
// domain.ErrUnsupportedFormat.
func (l *Loader) Load(path string) (domain.Document, error) {
	ext := normalizeExt(filepath.Ext(path))
	if !l.Supported(path) {
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(path))
	}
	content, err := l.readers[ext](path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return domain.Document{
		ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String(),
		Path:    path,
		Format:  format(ext),
		Content: content,
	}, nil
}

// LoadPaths loads files, directories (recursively) and glob patterns. Files
// that cannot be loaded are skipped and reported; blank documents are skipped
// silently. Only a missing or unreadable input path is fatal.
func (l *Loader) LoadPaths(paths []string) ([]domain.Document, []Skip, error) {
	var (
		docs    []domain.Document
		skipped []Skip
	)
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, nil, err
			}
			files := []string{m}
			if info.IsDir() {
				files, err = walk(m)
				if err != nil {
					return nil, nil, err
				}
			}
			for _, f := range files {
				doc, err := l.Load(f)
				if err != nil {
					l.log.Warn("skipping file", "path", f, "err", err)
					skipped = append(skipped, Skip{Path: f, Err: err})
					continue
				}
				if strings.TrimSpace(doc.Content) == "" {
					l.log.Debug("skipping empty document", "path", f)
					continue
				}
				docs = append(docs, doc)
			}
		}
	}
	return docs, skipped, nil
}

func walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Unsupported reports whether a skip was caused by the extension allow-list.
func Unsupported(s Skip) bool { return errors.Is(s.Err, domain.ErrUnsupportedFormat) }

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
