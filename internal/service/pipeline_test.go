package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/tools"
)

type fakeRetriever struct {
	results []domain.Result
	err     error
	calls   int
}

func (f *fakeRetriever) Retrieve(context.Context, string, int) ([]domain.Result, error) {
	f.calls++
	return f.results, f.err
}

type fakeGenerator struct {
	result   domain.GenerationResult
	err      error
	panicMsg string
	block    bool

	system   string
	messages []domain.Turn
	tools    []domain.Tool
}

func (f *fakeGenerator) Generate(ctx context.Context, system string, messages []domain.Turn, tools []domain.Tool) (domain.GenerationResult, error) {
	f.system, f.messages, f.tools = system, messages, tools
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func pipeline(r Retriever, g domain.Generator) *Pipeline {
	return NewPipeline(PipelineConfig{K: 2, Timeout: time.Second}, r, g, []domain.Tool{tools.Calculator{}}, nil)
}

func TestAnswer_GroundedWithContext(t *testing.T) {
	r := &fakeRetriever{results: results("Paris is the capital of France.", "France is in Europe.")}
	g := &fakeGenerator{result: domain.FinalText{Text: " Paris. "}}
	history := []domain.Turn{{Role: domain.RoleUser, Text: "hi"}, {Role: domain.RoleAssistant, Text: "hello"}}

	env := pipeline(r, g).Answer(context.Background(), "What is the capital of France?", history, true)
	if !env.Success || env.Answer != "Paris." {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Context != "Paris is the capital of France.\n\nFrance is in Europe." {
		t.Fatalf("context = %q", env.Context)
	}
	if len(g.messages) != 3 || g.messages[0].Text != "hi" {
		t.Fatalf("history not forwarded: %+v", g.messages)
	}
	user := g.messages[2].Text
	if !strings.Contains(user, FallbackPhrase) || !strings.Contains(user, env.Context) || !strings.Contains(user, "What is the capital of France?") {
		t.Fatalf("grounded prompt = %q", user)
	}
	if !strings.Contains(g.system, "calculator") || len(g.tools) != 1 {
		t.Fatalf("tools not offered: system=%q tools=%d", g.system, len(g.tools))
	}
}

func TestAnswer_RetrievalUnavailableStillAnswers(t *testing.T) {
	r := &fakeRetriever{err: domain.ErrBackendUnavailable}
	g := &fakeGenerator{result: domain.FinalText{Text: "answer"}}
	env := pipeline(r, g).Answer(context.Background(), "q", nil, true)
	if !env.Success || env.Context != "" || env.Answer != "answer" {
		t.Fatalf("envelope = %+v", env)
	}
	if g.messages[0].Text != "q" {
		t.Fatalf("prompt should be the raw question, got %q", g.messages[0].Text)
	}
}

func TestAnswer_EmptyRetrieval(t *testing.T) {
	env := pipeline(&fakeRetriever{}, &fakeGenerator{result: domain.FinalText{Text: "ok"}}).
		Answer(context.Background(), "q", nil, true)
	if !env.Success || env.Context != "" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestAnswer_NoRetrievalSkipsRetriever(t *testing.T) {
	r := &fakeRetriever{results: results("x")}
	env := pipeline(r, &fakeGenerator{result: domain.FinalText{Text: "ok"}}).Answer(context.Background(), "q", nil, false)
	if !env.Success || r.calls != 0 {
		t.Fatalf("envelope = %+v, retriever calls = %d", env, r.calls)
	}
}

func TestAnswer_GeneratorUnavailable(t *testing.T) {
	g := &fakeGenerator{err: errors.Join(domain.ErrBackendUnavailable, errors.New("dial tcp: refused"))}
	env := pipeline(&fakeRetriever{results: results("ctx")}, g).Answer(context.Background(), "q", nil, true)
	if env.Success || env.Context != "" {
		t.Fatalf("envelope = %+v", env)
	}
	if !strings.HasPrefix(env.Answer, KindUnavailable+": ") || env.Error != KindUnavailable {
		t.Fatalf("answer = %q error = %q", env.Answer, env.Error)
	}
}

func TestAnswer_GenerationTimeout(t *testing.T) {
	p := NewPipeline(PipelineConfig{Timeout: 20 * time.Millisecond}, nil, &fakeGenerator{block: true}, nil, nil)
	env := p.Answer(context.Background(), "q", nil, true)
	if env.Success || !strings.HasPrefix(env.Answer, KindUnavailable) {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	r := &fakeRetriever{}
	env := pipeline(r, &fakeGenerator{}).Answer(context.Background(), "   ", nil, true)
	if env.Success || !strings.HasPrefix(env.Answer, KindInvalid) || r.calls != 0 {
		t.Fatalf("envelope = %+v, retriever calls = %d", env, r.calls)
	}
}

func TestAnswer_RecoversPanics(t *testing.T) {
	env := pipeline(nil, &fakeGenerator{panicMsg: "boom"}).Answer(context.Background(), "q", nil, false)
	if env.Success || !strings.HasPrefix(env.Answer, KindProcessing) || !strings.Contains(env.Answer, "boom") {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestAnswer_StepsFromMessageList(t *testing.T) {
	g := &fakeGenerator{result: domain.MessageList{
		Turns: []domain.Turn{{Role: domain.RoleUser, Text: "2+2?"}, {Role: domain.RoleAssistant, Text: "4"}},
		Steps: []domain.Step{{Tool: "calculator", Input: `{"expression":"2+2"}`, Observation: "Result: 4"}},
	}}
	env := pipeline(nil, g).Answer(context.Background(), "2+2?", nil, false)
	if !env.Success || env.Answer != "4" || len(env.Steps) != 1 {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestExtract(t *testing.T) {
	cases := []struct {
		name    string
		in      domain.GenerationResult
		want    string
		wantErr bool
	}{
		{"final text", domain.FinalText{Text: "hello"}, "hello", false},
		{"last assistant", domain.MessageList{Turns: []domain.Turn{
			{Role: domain.RoleAssistant, Text: "first"},
			{Role: domain.RoleUser, Text: "more"},
			{Role: domain.RoleAssistant, Text: "second"},
			{Role: domain.RoleUser, Text: "trailing"},
		}}, "second", false},
		{"no assistant", domain.MessageList{Turns: []domain.Turn{{Role: domain.RoleUser, Text: "q"}}}, "", true},
		{"blank", domain.FinalText{Text: "  "}, "", true},
		{"nil", nil, "", true},
	}
	for _, tc := range cases {
		got, _, err := Extract(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("%s: Extract = %q, %v", tc.name, got, err)
		}
	}
}
