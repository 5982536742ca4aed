package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
)

// Failure kinds prefixed to the answer of an unsuccessful envelope.
const (
	KindUnavailable = "Service unavailable"
	KindInvalid     = "Invalid question"
	KindProcessing  = "Error processing question"
)

// Retriever is the part of retriever.Retriever the pipeline needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Result, error)
}

// PipelineConfig holds the per-call limits of the answer pipeline.
type PipelineConfig struct {
	K               int
	MaxContextChars int
	Timeout         time.Duration
}

// Pipeline answers questions: retrieve, assemble, compose, generate, extract.
type Pipeline struct {
	retriever Retriever
	generator domain.Generator
	tools     []domain.Tool
	cfg       PipelineConfig
	log       *slog.Logger
}

// NewPipeline wires a pipeline. retriever may be nil, which disables retrieval.
func NewPipeline(cfg PipelineConfig, r Retriever, g domain.Generator, tools []domain.Tool, logger *slog.Logger) *Pipeline {
	return &Pipeline{retriever: r, generator: g, tools: tools, cfg: cfg, log: logging.OrDiscard(logger)}
}

// Answer never returns an error: every failure, including a panic in a
// collaborator, becomes an unsuccessful envelope with an empty context.
func (p *Pipeline) Answer(ctx context.Context, question string, history []domain.Turn, useRetrieval bool) (env domain.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("answer pipeline panicked", "panic", r)
			env = failure(fmt.Errorf("internal error: %v", r))
		}
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return failure(domain.ErrEmptyQuestion)
	}

	var contextText string
	if useRetrieval && p.retriever != nil {
		results, err := p.retriever.Retrieve(ctx, question, p.cfg.K)
		switch {
		case err != nil:
			p.log.Warn("retrieval failed, answering without context", "err", err)
		case len(results) == 0:
			p.log.Debug("no relevant documents found", "question", question)
		default:
			contextText = Assemble(results, p.cfg.MaxContextChars)
			p.log.Debug("retrieved context", "results", len(results), "preview", preview(contextText, 200))
		}
	}

	prompt := question
	if contextText != "" {
		prompt = GroundedQuestion(contextText, question)
	}
	messages := make([]domain.Turn, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.Turn{Role: domain.RoleUser, Text: prompt})

	genCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	res, err := p.generator.Generate(genCtx, SystemPrompt(p.tools), messages, p.tools)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}
		p.log.Warn("generation failed", "err", err)
		return failure(err)
	}

	answer, steps, err := Extract(res)
	if err != nil {
		return failure(err)
	}
	for _, s := range steps {
		p.log.Debug("tool step", "tool", s.Tool, "input", s.Input, "observation", s.Observation)
	}
	return domain.Envelope{Success: true, Answer: answer, Context: contextText, Steps: steps}
}

// Extract normalizes a generation result into the answer text. For a message
// list it is the last assistant turn.
func Extract(res domain.GenerationResult) (string, []domain.Step, error) {
	var (
		text  string
		steps []domain.Step
	)
	switch r := res.(type) {
	case domain.FinalText:
		text = r.Text
	case domain.MessageList:
		steps = r.Steps
		for i := len(r.Turns) - 1; i >= 0; i-- {
			if r.Turns[i].Role == domain.RoleAssistant {
				text = r.Turns[i].Text
				break
			}
		}
	case nil:
		return "", nil, errors.New("generator returned no result")
	default:
		return "", nil, fmt.Errorf("unexpected generation result %T", res)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", steps, errors.New("generator returned an empty answer")
	}
	return text, steps, nil
}

func failure(err error) domain.Envelope {
	kind := KindProcessing
	switch {
	case errors.Is(err, domain.ErrBackendUnavailable):
		kind = KindUnavailable
	case errors.Is(err, domain.ErrEmptyQuestion):
		kind = KindInvalid
	}
	return domain.Envelope{Success: false, Answer: kind + ": " + err.Error(), Context: "", Error: kind}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
