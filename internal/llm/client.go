// Package llm talks to an OpenAI-compatible chat completions endpoint and runs
// the tool-call loop on behalf of the answer pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
)

// Config configures the chat client.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float32
	MaxToolRounds int
}

// Client implements domain.Generator over go-openai.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxRounds   int
	log         *slog.Logger
}

// NewClient creates a chat client. BaseURL may point at any OpenAI-compatible server.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: missing API key (set API_KEY or OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRounds:   cfg.MaxToolRounds,
		log:         logging.OrDiscard(logger),
	}, nil
}

// Generate sends the conversation with the tool definitions, executes any
// tool calls the model requests and repeats until the model answers in plain
// text or the round limit is reached. The last round is sent without tools so
// the model has to answer.
func (c *Client) Generate(ctx context.Context, system string, messages []domain.Turn, tools []domain.Tool) (domain.GenerationResult, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages)+2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, t := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: roleOf(t.Role), Content: t.Text})
	}

	byName := make(map[string]domain.Tool, len(tools))
	defs := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	var steps []domain.Step
	for round := 0; round <= c.maxRounds; round++ {
		req := openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    msgs,
			Temperature: c.temperature,
		}
		if round < c.maxRounds && len(defs) > 0 {
			req.Tools = defs
		}
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: chat completion: %w", domain.ErrBackendUnavailable, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%w: chat completion returned no choices", domain.ErrBackendUnavailable)
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			turns := append(append([]domain.Turn(nil), messages...), domain.Turn{Role: domain.RoleAssistant, Text: msg.Content})
			return domain.MessageList{Turns: turns, Steps: steps}, nil
		}

		msgs = append(msgs, msg)
		for _, call := range msg.ToolCalls {
			observation := c.runTool(ctx, byName, call)
			steps = append(steps, domain.Step{Tool: call.Function.Name, Input: call.Function.Arguments, Observation: observation})
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    observation,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
	return nil, fmt.Errorf("%w: no answer after %d tool rounds", domain.ErrBackendUnavailable, c.maxRounds)
}

func (c *Client) runTool(ctx context.Context, byName map[string]domain.Tool, call openai.ToolCall) string {
	tool, ok := byName[call.Function.Name]
	if !ok {
		c.log.Warn("model requested unknown tool", "tool", call.Function.Name)
		return fmt.Sprintf("Error: unknown tool %q", call.Function.Name)
	}
	out := tool.Call(ctx, call.Function.Arguments)
	c.log.Debug("tool call", "tool", call.Function.Name, "input", call.Function.Arguments, "observation", out)
	return out
}

func roleOf(r domain.Role) string {
	if r == domain.RoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
