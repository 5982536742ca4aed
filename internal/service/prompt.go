package service

import (
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

// FallbackPhrase is what the assistant must say when the supplied context
// does not contain the answer.
const FallbackPhrase = "Based on the provided context, I cannot answer this question."

// SystemPrompt describes the assistant and lists the tools it may call.
func SystemPrompt(tools []domain.Tool) string {
	var sb strings.Builder
	sb.WriteString("You are a knowledge question-answering assistant. You answer questions, call tools and carry out tasks.\n")
	if len(tools) > 0 {
		sb.WriteString("You can use the following tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Name(), t.Description())
		}
		sb.WriteString("Call a tool whenever it helps, then give the final answer in plain text.\n")
	}
	sb.WriteString("Answer in English.")
	return sb.String()
}

// GroundedQuestion wraps question with the retrieved context and the
// instruction to answer only from it.
func GroundedQuestion(context, question string) string {
	return fmt.Sprintf(`Answer the question using only the context below. If the context does not contain the relevant information, reply exactly: "%s"

Context:
%s

Question: %s

Answer:`, FallbackPhrase, context, question)
}
