package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/ingest"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/pipeline"
	"github.com/quantel/ohlcvrag/internal/storage"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.String("type", req.TypeHint))
	result, err := s.pipeline.Query(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req pipeline.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("analyze request", zap.String("type", req.Type), zap.Strings("tickers", req.Tickers))
	result, err := s.pipeline.Analyze(r.Context(), req)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type ingestRequest struct {
	Tickers []string `json:"tickers"`
	// Days bounds the fetch window; 0 means the source default.
	Days int `json:"days,omitempty"`
}

type ingestResponse struct {
	Tickers     int                 `json:"tickers"`
	TotalChunks int                 `json:"total_chunks"`
	Results     []ingestTickerEntry `json:"results"`
}

type ingestTickerEntry struct {
	Ticker string `json:"ticker"`
	Bars   int    `json:"bars"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tickers := normalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		s.respondError(w, http.StatusBadRequest, "tickers is required")
		return
	}
	var fr ingest.FetchRange
	if req.Days > 0 {
		fr.End = time.Now()
		fr.Start = fr.End.AddDate(0, 0, -req.Days)
	}
	s.logger.Info("ingest request", zap.Strings("tickers", tickers), zap.Int("days", req.Days))
	report := s.ingestor.IngestAll(r.Context(), tickers, fr)

	resp := ingestResponse{Tickers: len(tickers), TotalChunks: report.TotalChunks()}
	for _, tr := range report.Results {
		entry := ingestTickerEntry{Ticker: tr.Ticker, Bars: tr.Bars, Chunks: tr.Chunks}
		if tr.Err != nil {
			entry.Error = tr.Err.Error()
		}
		resp.Results = append(resp.Results, entry)
	}
	status := http.StatusOK
	if len(report.Failed()) == len(tickers) {
		status = http.StatusBadGateway
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tickers, err := s.storage.ListTickers(ctx)
	if err != nil {
		s.logger.Error("status: list tickers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"chunks":            chunkCount,
		"tickers":           tickers,
		"vector_index_size": s.vectors.Size(),
	}

	configInfo := map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_window":         s.config.Chunker.Window,
		"chunk_stride":         s.config.Chunker.Stride,
		"llm_model":            s.config.LLM.Model,
		"database_path":        s.config.Storage.DatabasePath,
		"bleve_index_path":     s.config.Storage.BleveIndexPath,
		"vector_index_path":    s.config.Storage.VectorIndexPath,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.VectorIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// respondPipelineError maps domain errors to HTTP statuses.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	var ge *models.GenerationError
	switch {
	case errors.As(err, &ve):
		s.respondError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &ge):
		s.logger.Error("generation failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, ge.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func normalizeTickers(in []string) []string {
	var out []string
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
