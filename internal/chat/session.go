// Package chat implements the interactive session shared by the terminal UI
// and the plain line REPL.
package chat

import (
	"context"
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

// Farewell is printed when a session ends.
const Farewell = "Goodbye!"

// Answerer is the query path of the answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string, history []domain.Turn, useRetrieval bool) domain.Envelope
}

// InfoFunc reports the state of the vector store collection.
type InfoFunc func(ctx context.Context) (domain.CollectionInfo, error)

// Reply is the outcome of one input line.
type Reply struct {
	Text     string
	Envelope *domain.Envelope
	Quit     bool
}

// Session owns the chat history of one interactive user.
type Session struct {
	answerer     Answerer
	info         InfoFunc
	useRetrieval bool
	debug        bool
	history      []domain.Turn
}

// NewSession creates a session. info may be nil.
func NewSession(a Answerer, info InfoFunc, useRetrieval, debug bool) *Session {
	return &Session{answerer: a, info: info, useRetrieval: useRetrieval, debug: debug}
}

// History returns a copy of the turns so far.
func (s *Session) History() []domain.Turn {
	return append([]domain.Turn(nil), s.history...)
}

// Execute handles a command (quit, exit, history, clear, status) or asks the
// pipeline. Successful answers are appended to the history.
func (s *Session) Execute(ctx context.Context, line string) Reply {
	input := strings.TrimSpace(line)
	switch strings.ToLower(input) {
	case "":
		return Reply{}
	case "quit", "exit":
		return Reply{Text: Farewell, Quit: true}
	case "history":
		return Reply{Text: s.renderHistory()}
	case "clear":
		s.history = nil
		return Reply{Text: "History cleared."}
	case "status":
		return Reply{Text: s.status(ctx)}
	}

	env := s.answerer.Answer(ctx, input, s.History(), s.useRetrieval)
	if env.Success {
		s.history = append(s.history,
			domain.Turn{Role: domain.RoleUser, Text: input},
			domain.Turn{Role: domain.RoleAssistant, Text: env.Answer})
	}
	return Reply{Text: s.render(env), Envelope: &env}
}

func (s *Session) render(env domain.Envelope) string {
	if !env.Success {
		return "Error: " + env.Answer
	}
	if !s.debug {
		return env.Answer
	}
	var sb strings.Builder
	for _, st := range env.Steps {
		fmt.Fprintf(&sb, "[%s] %s -> %s\n", st.Tool, st.Input, st.Observation)
	}
	if env.Context != "" {
		fmt.Fprintf(&sb, "[context] %d chars\n", len([]rune(env.Context)))
	}
	sb.WriteString(env.Answer)
	return sb.String()
}

func (s *Session) renderHistory() string {
	if len(s.history) == 0 {
		return "No history yet."
	}
	var sb strings.Builder
	for i, t := range s.history {
		if i > 0 {
			sb.WriteByte('\n')
		}
		who := "You"
		if t.Role == domain.RoleAssistant {
			who = "Assistant"
		}
		fmt.Fprintf(&sb, "%s: %s", who, t.Text)
	}
	return sb.String()
}

func (s *Session) status(ctx context.Context) string {
	mode := "retrieval on"
	if !s.useRetrieval {
		mode = "retrieval off"
	}
	if s.info == nil {
		return fmt.Sprintf("Mode: %s. Turns: %d.", mode, len(s.history))
	}
	info, err := s.info(ctx)
	if err != nil {
		return "Error: " + err.Error()
	}
	state := "initialized"
	if !info.Initialized {
		state = "not initialized"
	}
	return fmt.Sprintf("Collection %q: %d chunks, dimension %d, %s (%s). Mode: %s. Turns: %d.",
		info.Name, info.Count, info.Dimension, state, info.Location, mode, len(s.history))
}
