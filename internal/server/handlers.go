package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/llm"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/ranking"
	"github.com/hyperjump/finsum/internal/search"
	"github.com/hyperjump/finsum/internal/storage"
	"github.com/hyperjump/finsum/internal/summarize"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stored, err := s.sections.CountSections(r.Context())
	if err != nil {
		s.logger.Error("status: count sections failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.mu.RLock()
	chunks := s.store.Count()
	paths := len(s.store.ListSections())
	s.mu.RUnlock()

	resp := map[string]interface{}{
		"chunks":          chunks,
		"section_paths":   paths,
		"stored_sections": stored,
		"vector_dim":      s.store.Dim(),
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
		"config": map[string]interface{}{
			"embedding_provider": s.cfg.Embedding.Provider,
			"reranker_provider":  s.cfg.Reranker.Provider,
			"llm_model":          s.cfg.LLM.Model,
			"max_chunk_chars":    s.cfg.Chunking.MaxChunkChars,
			"min_chunk_chars":    s.cfg.Chunking.MinChunkChars,
			"top_k":              s.cfg.Retrieval.TopK,
			"database_path":      s.cfg.Storage.DatabasePath,
		},
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImportSection(w http.ResponseWriter, r *http.Request) {
	var input models.SectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("import section request", zap.String("ticker", input.Ticker), zap.String("item", input.Item))
	res, err := s.ImportSection(r.Context(), input)
	if err != nil {
		s.respondFailure(w, "import failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sections.ListSections(r.Context(), r.URL.Query().Get("ticker"))
	if err != nil {
		s.respondFailure(w, "list sections failed", err)
		return
	}
	if infos == nil {
		infos = []storage.SectionInfo{}
	}
	s.mu.RLock()
	paths := s.store.ListSections()
	s.mu.RUnlock()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sections":      infos,
		"section_paths": paths,
	})
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("section")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "section is required")
		return
	}
	s.mu.RLock()
	chunks := s.retriever.GetBySection(path)
	s.mu.RUnlock()
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"section": path, "chunks": chunks})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	resp, err := s.Search(r.Context(), req)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		s.respondError(w, http.StatusNotImplemented, "summarize not configured")
		return
	}
	var req models.SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("summarize request", zap.String("ticker", req.Ticker), zap.String("item", req.Item))
	resp, err := s.summarizer.Summarize(r.Context(), req)
	if err != nil {
		s.respondFailure(w, "summarize failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, summarize.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, summarize.ErrSectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, summarize.ErrNoChunks):
		return http.StatusUnprocessableEntity
	case errors.Is(err, embedding.ErrEmbeddingFailed), errors.Is(err, ranking.ErrRerankFailed), errors.Is(err, llm.ErrGenerationFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
