package summarizer

import (
	"strings"
	"testing"
)

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	docs := []string{
		"Go channels connect goroutines. The weather was mild.",
		"Goroutines communicate over channels. Channels block until goroutines are ready!",
	}
	got := NewFrequencySummarizer().Summarize(docs, 3)
	if strings.Contains(got, "weather") {
		t.Fatalf("summary picked the off-topic sentence: %q", got)
	}
	first := strings.Index(got, "Go channels connect goroutines.")
	if first != 0 {
		t.Fatalf("summary should start with the first selected sentence in corpus order: %q", got)
	}
}

func TestSummarize_DeduplicatesAndHandlesEmpty(t *testing.T) {
	s := NewFrequencySummarizer()
	if got := s.Summarize(nil, 3); got != "" {
		t.Fatalf("empty corpus summary = %q", got)
	}
	if got := s.Summarize([]string{"the of and."}, 3); got != "" {
		t.Fatalf("stopword-only summary = %q", got)
	}
	got := s.Summarize([]string{"Same line here.", "Same line here."}, 5)
	if got != "Same line here." {
		t.Fatalf("summary = %q, want single sentence", got)
	}
}

func TestSummarize_LinesWithoutPunctuation(t *testing.T) {
	got := NewFrequencySummarizer().Summarize([]string{"# Heading\nbody text follows"}, 5)
	if got != "# Heading body text follows" {
		t.Fatalf("summary = %q", got)
	}
}
