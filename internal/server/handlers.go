package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/service"
)

// Pipeline answers questions.
type Pipeline interface {
	Answer(ctx context.Context, question string, history []domain.Turn, useRetrieval bool) domain.Envelope
}

// Retriever runs raw similarity queries and reports the collection state.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Result, error)
	Info(ctx context.Context) (domain.CollectionInfo, error)
}

// AskRequest is the body of POST /ask. UseRetrieval defaults to true.
type AskRequest struct {
	Question     string        `json:"question"`
	History      []domain.Turn `json:"history"`
	UseRetrieval *bool         `json:"use_retrieval,omitempty"`
}

// RetrieveRequest is the body of POST /retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// RetrievedChunk is one entry of a retrieve response.
type RetrievedChunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Offset   int               `json:"offset"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrieveResponse is the body returned by POST /retrieve.
type RetrieveResponse struct {
	Success bool             `json:"success"`
	Results []RetrievedChunk `json:"results"`
	Error   string           `json:"error,omitempty"`
}

// Handler holds the dependencies for HTTP handlers. Pipeline calls are
// serialized: one question is processed at a time.
type Handler struct {
	mu        sync.Mutex
	pipeline  Pipeline
	retriever Retriever
	log       *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(p Pipeline, r Retriever, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, retriever: r, log: logging.OrDiscard(logger)}
}

// HandleAsk handles POST /ask requests.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, domain.Envelope{Success: false, Answer: service.KindInvalid + ": invalid JSON: " + err.Error(), Error: service.KindInvalid})
		return
	}
	for _, t := range req.History {
		if t.Role != domain.RoleUser && t.Role != domain.RoleAssistant {
			sendJSON(w, http.StatusBadRequest, domain.Envelope{Success: false, Answer: service.KindInvalid + ": unknown history role " + string(t.Role), Error: service.KindInvalid})
			return
		}
	}
	useRetrieval := req.UseRetrieval == nil || *req.UseRetrieval

	h.mu.Lock()
	env := h.pipeline.Answer(r.Context(), req.Question, req.History, useRetrieval)
	h.mu.Unlock()
	sendJSON(w, http.StatusOK, env)
}

// HandleRetrieve handles POST /retrieve requests.
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSON(w, http.StatusBadRequest, RetrieveResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		sendJSON(w, http.StatusBadRequest, RetrieveResponse{Error: domain.ErrEmptyQuestion.Error()})
		return
	}
	results, err := h.retriever.Retrieve(r.Context(), req.Query, req.K)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrBackendUnavailable) {
			status = http.StatusServiceUnavailable
		}
		h.log.Warn("retrieve failed", "err", err)
		sendJSON(w, status, RetrieveResponse{Error: err.Error()})
		return
	}
	out := RetrieveResponse{Success: true, Results: make([]RetrievedChunk, 0, len(results))}
	for _, res := range results {
		out.Results = append(out.Results, RetrievedChunk{
			ID:       res.Chunk.ID,
			Text:     res.Chunk.Text,
			Source:   res.Chunk.SourcePath,
			Offset:   res.Chunk.Offset,
			Score:    res.Score,
			Metadata: res.Chunk.Metadata,
		})
	}
	sendJSON(w, http.StatusOK, out)
}

// HandleStatus handles GET /status requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := h.retriever.Info(r.Context())
	if err != nil {
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	sendJSON(w, http.StatusOK, info)
}

// HandleHealth handles GET /health requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
