package embedding

import (
	"context"
	"testing"
)

type constEmbedder struct{}

func (constEmbedder) Name() string   { return "const" }
func (constEmbedder) Dimension() int { return 2 }
func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{3, 4}
	}
	return out, nil
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Fatalf("Normalize = %v, want [0.6 0.8]", v)
	}
	z := Normalize([]float32{0, 0})
	if !IsZero(z) {
		t.Fatalf("zero vector changed: %v", z)
	}
}

func TestEmbedOne(t *testing.T) {
	v, err := EmbedOne(context.Background(), constEmbedder{}, "q")
	if err != nil || len(v) != 2 {
		t.Fatalf("EmbedOne = %v, %v", v, err)
	}
}
