package service

import (
	"strings"
	"unicode/utf8"

	"ragqa/internal/domain"
)

const contextSeparator = "\n\n"

// Assemble joins chunk texts in result order separated by a blank line. When
// maxChars is positive, whole chunks are dropped from the tail until the
// result fits; a chunk is never cut.
func Assemble(results []domain.Result, maxChars int) string {
	var (
		parts []string
		total int
	)
	for _, r := range results {
		n := utf8.RuneCountInString(r.Chunk.Text)
		if len(parts) > 0 {
			n += utf8.RuneCountInString(contextSeparator)
		}
		if maxChars > 0 && total+n > maxChars {
			break
		}
		parts = append(parts, r.Chunk.Text)
		total += n
	}
	return strings.Join(parts, contextSeparator)
}
