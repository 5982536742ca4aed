package domain

import "context"

// Document represents a single source file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Format  string
	Content string
}

// Chunk is a bounded window of a document used for embedding and retrieval.
// Offset is the rune offset of the window inside the source document.
type Chunk struct {
	ID         string
	Text       string
	SourcePath string
	Offset     int
	Index      int
	Metadata   map[string]string
}

// Result is a retrieved chunk with its similarity score.
type Result struct {
	Chunk Chunk
	Score float64
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the chat history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Step records a single tool invocation performed while generating an answer.
type Step struct {
	Tool        string `json:"tool"`
	Input       string `json:"input"`
	Observation string `json:"observation"`
}

// Envelope is the uniform result of every query-path operation.
type Envelope struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer"`
	Context string `json:"context"`
	Error   string `json:"error,omitempty"`
	Steps   []Step `json:"steps,omitempty"`
}

// CollectionInfo describes the state of a vector store collection.
type CollectionInfo struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Dimension   int    `json:"dimension"`
	Initialized bool   `json:"initialized"`
	Location    string `json:"location,omitempty"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Tool is a function the generation backend may call while answering.
// Call never fails: problems are reported in the returned text.
type Tool interface {
	Name() string
	Description() string
	Parameters() any
	Call(ctx context.Context, arguments string) string
}

// Generator produces the final assistant reply for a conversation. It may run
// several tool-calling rounds internally before returning.
type Generator interface {
	Generate(ctx context.Context, system string, messages []Turn, tools []Tool) (GenerationResult, error)
}
