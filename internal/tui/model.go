package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/chat"
)

type entry struct {
	who     string
	text    string
	context string
	failed  bool
}

type replyMsg struct {
	question string
	reply    chat.Reply
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx         context.Context
	session     *chat.Session
	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	transcript  []entry
	banner      string
	status      string
	showContext bool
	busy        bool
	ready       bool
	quitting    bool
}

// New creates a new TUI model. banner is shown under the title (for example
// a warning that the collection is empty); showContext renders the retrieved
// context under each answer.
func New(ctx context.Context, session *chat.Session, banner string, showContext bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or: history, clear, status, quit"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:         ctx,
		session:     session,
		input:       ti,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		banner:      banner,
		status:      "Ready.",
		showContext: showContext,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and input boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + banner, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case replyMsg:
		m.busy = false
		if msg.reply.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		m.push(msg.reply)
		m.status = "Ready."
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.quitting = true
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = "Thinking..."
			if !isCommand(q) {
				m.transcript = append(m.transcript, entry{who: "You", text: q})
				m.refresh()
			}
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		}
		switch msg.String() {
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return replyMsg{question: q, reply: session.Execute(ctx, q)}
	}
}

func (m *Model) push(r chat.Reply) {
	if r.Text == "" {
		return
	}
	if r.Envelope == nil {
		m.transcript = append(m.transcript, entry{who: "System", text: r.Text})
		return
	}
	e := entry{who: "Assistant", text: r.Text, failed: !r.Envelope.Success}
	if m.showContext {
		e.context = r.Envelope.Context
	}
	m.transcript = append(m.transcript, e)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if m.quitting {
		return chat.Farewell + "\n"
	}
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Q&A")
	banner := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.banner)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + banner + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	var blocks []string
	question := ""
	for _, e := range m.transcript {
		label := youStyle.Render(e.who + ":")
		switch e.who {
		case "Assistant":
			label = assistantStyle.Render(e.who + ":")
		case "System":
			label = systemStyle.Render(e.who + ":")
		}
		text := e.text
		if e.failed {
			text = errorStyle.Render(text)
		}
		block := label + " " + text
		if e.context != "" {
			block += "\n" + contextStyle.Render("Context: ") + highlightBestSentence(e.context, question)
		}
		if e.who == "You" {
			question = e.text
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func isCommand(q string) bool {
	switch strings.ToLower(q) {
	case "quit", "exit", "history", "clear", "status":
		return true
	}
	return false
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	youStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	systemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	contextStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence marks the context sentence sharing most words with the question.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(ctx context.Context, session *chat.Session, banner string, showContext bool) error {
	p := tea.NewProgram(New(ctx, session, banner, showContext), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		fmt.Println(chat.Farewell)
		return nil
	}
	return err
}
