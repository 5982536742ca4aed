package loader

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ragqa/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeDOCX(t *testing.T, path string, paragraphs ...string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	body := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		body += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	body += `</w:body></w:document>`
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
}

func TestLoad_TextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "a.txt")
	md := filepath.Join(dir, "b.MD")
	writeFile(t, txt, "plain text")
	writeFile(t, md, "# Title\nbody")

	l := New(nil, nil)
	doc, err := l.Load(txt)
	if err != nil {
		t.Fatalf("Load(txt) failed: %v", err)
	}
	if doc.Content != "plain text" || doc.Format != "txt" || doc.Path != txt {
		t.Fatalf("unexpected txt document: %+v", doc)
	}
	doc, err = l.Load(md)
	if err != nil {
		t.Fatalf("Load(md) failed: %v", err)
	}
	if doc.Format != "md" {
		t.Fatalf("format = %q, want md", doc.Format)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "image.png")
	writeFile(t, p, "not really a png")

	_, err := New(nil, nil).Load(p)
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("Load(png) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoad_RestrictedAllowList(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.md")
	writeFile(t, p, "text")

	l := New([]string{".txt"}, nil)
	if l.Supported(p) {
		t.Fatalf("md should not be supported with a txt-only allow-list")
	}
	if _, err := l.Load(p); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("Load error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoad_DOCX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "report.docx")
	writeDOCX(t, p, "Hello world", "Second paragraph")

	doc, err := New(nil, nil).Load(p)
	if err != nil {
		t.Fatalf("Load(docx) failed: %v", err)
	}
	if doc.Content != "Hello world\nSecond paragraph" {
		t.Fatalf("docx content = %q", doc.Content)
	}
}

func TestLoad_PDF(t *testing.T) {
	doc, err := New(nil, nil).Load(filepath.Join("testdata", "hello.pdf"))
	if err != nil {
		t.Fatalf("Load(pdf) failed: %v", err)
	}
	if doc.Format != "pdf" {
		t.Fatalf("format = %q, want pdf", doc.Format)
	}
	if !strings.Contains(doc.Content, "Hello PDF world") {
		t.Fatalf("pdf content = %q", doc.Content)
	}
}

func TestLoadPaths_WalksAndAggregatesSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.txt"), "first")
	writeFile(t, filepath.Join(dir, "nested", "two.md"), "second")
	writeFile(t, filepath.Join(dir, "nested", "data.csv"), "a,b")
	writeFile(t, filepath.Join(dir, "blank.txt"), "   \n")
	writeFile(t, filepath.Join(dir, "broken.docx"), "not a zip")
	writeFile(t, filepath.Join(dir, "broken.pdf"), "this is not a pdf document at all")
	writeFile(t, filepath.Join(dir, ".hidden", "secret.txt"), "hidden")

	docs, skipped, err := New(nil, nil).LoadPaths([]string{dir})
	if err != nil {
		t.Fatalf("LoadPaths failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("loaded %d documents, want 2: %+v", len(docs), docs)
	}
	if len(skipped) != 3 {
		t.Fatalf("skipped %d files, want 3: %v", len(skipped), skipped)
	}
	unsupported := 0
	for _, s := range skipped {
		if Unsupported(s) {
			unsupported++
		}
	}
	if unsupported != 1 {
		t.Fatalf("expected exactly one unsupported skip, got %d", unsupported)
	}
}

func TestLoadPaths_MissingPath(t *testing.T) {
	_, _, err := New(nil, nil).LoadPaths([]string{filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatalf("expected error for missing path")
	}
}
