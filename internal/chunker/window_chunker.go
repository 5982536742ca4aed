package chunker

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/google/uuid"

	"ragqa/internal/domain"
)

// Piece is one window of text with its rune offset in the source.
type Piece struct {
	Text   string
	Offset int
}

// Split cuts text into windows of at most size runes. Consecutive windows share
// exactly overlap runes. Window ends are moved back to a paragraph, line,
// sentence or word boundary when one exists in the second half of the window.
func Split(text string, size, overlap int) ([]Piece, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", domain.ErrInvalidWindow, size, overlap)
	}
	runes := []rune(text)
	n := len(runes)
	if n <= size {
		return []Piece{{Text: text, Offset: 0}}, nil
	}
	var pieces []Piece
	start := 0
	for {
		end := start + size
		if end >= n {
			pieces = append(pieces, Piece{Text: string(runes[start:]), Offset: start})
			return pieces, nil
		}
		end = snap(runes, start, end, size, overlap)
		pieces = append(pieces, Piece{Text: string(runes[start:end]), Offset: start})
		start = end - overlap
	}
}

type boundary func(runes []rune, p int) bool

// Ordered by preference.
var boundaries = []boundary{
	func(r []rune, p int) bool { return p >= 2 && r[p-1] == '\n' && r[p-2] == '\n' },
	func(r []rune, p int) bool { return r[p-1] == '\n' },
	func(r []rune, p int) bool {
		return p >= 2 && unicode.IsSpace(r[p-1]) && (r[p-2] == '.' || r[p-2] == '!' || r[p-2] == '?')
	},
	func(r []rune, p int) bool { return unicode.IsSpace(r[p-1]) },
}

// snap returns the best cut position in (start+overlap, end]. The cut must leave
// the next window room to advance, so it never goes below start+overlap+1.
func snap(runes []rune, start, end, size, overlap int) int {
	lo := start + size/2
	if lo <= start+overlap {
		lo = start + overlap + 1
	}
	for _, isBoundary := range boundaries {
		for p := end; p >= lo; p-- {
			if isBoundary(runes, p) {
				return p
			}
		}
	}
	return end
}

// WindowChunker implements domain.Chunker with Split.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", domain.ErrInvalidWindow, size, overlap)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	pieces, err := Split(document.Content, c.size, c.overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(pieces))
	for idx, p := range pieces {
		offset := strconv.Itoa(p.Offset)
		chunks = append(chunks, domain.Chunk{
			ID:         ChunkID(document.Path, p.Offset),
			Text:       p.Text,
			SourcePath: document.Path,
			Offset:     p.Offset,
			Index:      idx,
			Metadata: map[string]string{
				"source":      document.Path,
				"format":      document.Format,
				"offset":      offset,
				"chunk_index": strconv.Itoa(idx),
			},
		})
	}
	return chunks, nil
}

// ChunkID derives a stable identifier from the source path and offset so that
// re-ingesting a file reproduces the same IDs.
func ChunkID(source string, offset int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(offset))).String()
}
