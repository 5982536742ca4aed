package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragqa/internal/domain"
)

type stubPipeline struct {
	question     string
	history      []domain.Turn
	useRetrieval bool
}

func (s *stubPipeline) Answer(_ context.Context, q string, h []domain.Turn, use bool) domain.Envelope {
	s.question, s.history, s.useRetrieval = q, h, use
	return domain.Envelope{Success: true, Answer: "A: " + q, Context: "ctx"}
}

type stubRetriever struct {
	err error
}

func (s stubRetriever) Retrieve(_ context.Context, q string, k int) ([]domain.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Result{{Chunk: domain.Chunk{ID: "c1", Text: q, SourcePath: "a.txt"}, Score: float64(k)}}, nil
}

func (s stubRetriever) Info(context.Context) (domain.CollectionInfo, error) {
	if s.err != nil {
		return domain.CollectionInfo{}, s.err
	}
	return domain.CollectionInfo{Name: "documents", Count: 2, Dimension: 8, Initialized: true}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAsk(t *testing.T) {
	p := &stubPipeline{}
	router := NewRouter(NewHandler(p, stubRetriever{}, nil))

	rec := do(t, router, http.MethodPost, "/ask", `{"question":"why?","history":[{"role":"user","text":"hi"},{"role":"assistant","text":"hello"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var env domain.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Answer != "A: why?" || env.Context != "ctx" {
		t.Fatalf("envelope = %+v", env)
	}
	if len(p.history) != 2 || !p.useRetrieval {
		t.Fatalf("pipeline called with history=%v useRetrieval=%v", p.history, p.useRetrieval)
	}

	do(t, router, http.MethodPost, "/ask", `{"question":"x","use_retrieval":false}`)
	if p.useRetrieval {
		t.Fatalf("use_retrieval=false not honoured")
	}
}

func TestAsk_BadRequests(t *testing.T) {
	router := NewRouter(NewHandler(&stubPipeline{}, stubRetriever{}, nil))
	for _, body := range []string{`{not json`, `{"question":"q","history":[{"role":"system","text":"x"}]}`} {
		rec := do(t, router, http.MethodPost, "/ask", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
		var env domain.Envelope
		_ = json.NewDecoder(rec.Body).Decode(&env)
		if env.Success || !strings.HasPrefix(env.Answer, "Invalid question") {
			t.Fatalf("envelope = %+v", env)
		}
	}
	if rec := do(t, router, http.MethodGet, "/ask", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /ask status = %d, want 405", rec.Code)
	}
}

func TestRetrieve(t *testing.T) {
	router := NewRouter(NewHandler(&stubPipeline{}, stubRetriever{}, nil))
	rec := do(t, router, http.MethodPost, "/retrieve", `{"query":"go","k":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp RetrieveResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Success || len(resp.Results) != 1 || resp.Results[0].Score != 3 || resp.Results[0].Source != "a.txt" {
		t.Fatalf("response = %+v", resp)
	}
	if rec := do(t, router, http.MethodPost, "/retrieve", `{"query":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty query status = %d, want 400", rec.Code)
	}
}

func TestRetrieve_BackendUnavailable(t *testing.T) {
	err := fmt.Errorf("%w: connection refused", domain.ErrBackendUnavailable)
	router := NewRouter(NewHandler(&stubPipeline{}, stubRetriever{err: err}, nil))
	if rec := do(t, router, http.MethodPost, "/retrieve", `{"query":"go"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/status", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status endpoint = %d, want 503", rec.Code)
	}
}

func TestStatusAndHealth(t *testing.T) {
	router := NewRouter(NewHandler(&stubPipeline{}, stubRetriever{}, nil))
	rec := do(t, router, http.MethodGet, "/status", "")
	var info domain.CollectionInfo
	_ = json.NewDecoder(rec.Body).Decode(&info)
	if rec.Code != http.StatusOK || info.Count != 2 || !info.Initialized {
		t.Fatalf("status = %d info = %+v", rec.Code, info)
	}
	rec = do(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}
