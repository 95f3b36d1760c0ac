package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vincent-zhou/knowbase/internal/domain"
	healthuc "github.com/vincent-zhou/knowbase/internal/usecase/health"
	knowledgeuc "github.com/vincent-zhou/knowbase/internal/usecase/knowledge"
)

const maxBatchSize = 100

// Error codes returned in JSON error bodies.
const (
	codeBadRequest             = "bad_request"
	codeUnauthorized           = "unauthorized"
	codeValidationFailed       = "validation_failed"
	codeCollectionNotFound     = "collection_not_found"
	codeVectorDimMismatch      = "vector_dim_mismatch"
	codeEmbeddingProviderError = "embedding_provider_error"
	codeInternalError          = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the knowledge service over HTTP.
type Server struct {
	knowledge     *knowledgeuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(knowledge *knowledgeuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		knowledge: knowledge,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrInvalidItem, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
	}
	return s
}

// RegisterRoutes mounts all API handlers on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/documents", s.StoreDocument)
	r.Post("/documents/batch", s.StoreDocumentBatch)
	r.Post("/search", s.SearchDocuments)
	r.Get("/collection", s.GetCollection)
	r.Get("/collections", s.ListCollections)
	r.Delete("/collections/{collection}", s.DeleteCollection)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type metadataPayload struct {
	Topic  string   `json:"topic,omitempty"`
	Weight float32  `json:"weight,omitempty"`
	Title  string   `json:"title,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

func (m *metadataPayload) toDomain() domain.Metadata {
	if m == nil {
		return domain.Metadata{}
	}
	return domain.Metadata{Topic: m.Topic, Weight: m.Weight, Title: m.Title, Tags: m.Tags}
}

type storeDocumentRequest struct {
	Text     string           `json:"text"`
	Metadata *metadataPayload `json:"metadata,omitempty"`
}

type storeDocumentResponse struct {
	ID string `json:"id"`
}

// StoreDocument handles POST /documents.
func (s *Server) StoreDocument(w http.ResponseWriter, r *http.Request) {
	var req storeDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "text is required")
		return
	}

	id, err := s.knowledge.Store(r.Context(), req.Text, req.Metadata.toDomain())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, storeDocumentResponse{ID: id})
}

type batchDocumentItem struct {
	Text     string           `json:"text"`
	Metadata *metadataPayload `json:"metadata,omitempty"`
}

type storeBatchRequest struct {
	Documents []batchDocumentItem `json:"documents"`
}

type storeBatchResponse struct {
	IDs []string `json:"ids"`
}

// StoreDocumentBatch handles POST /documents/batch.
func (s *Server) StoreDocumentBatch(w http.ResponseWriter, r *http.Request) {
	var req storeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"documents count must be between 1 and "+strconv.Itoa(maxBatchSize))
		return
	}

	texts := make([]string, len(req.Documents))
	metas := make([]domain.Metadata, len(req.Documents))
	for i, d := range req.Documents {
		if d.Text == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "document "+strconv.Itoa(i)+": text is required")
			return
		}
		texts[i] = d.Text
		metas[i] = d.Metadata.toDomain()
	}

	ids, err := s.knowledge.StoreBatch(r.Context(), texts, metas)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, storeBatchResponse{IDs: ids})
}

type searchRequest struct {
	Query          string   `json:"query"`
	Limit          *int     `json:"limit,omitempty"`
	ScoreThreshold *float32 `json:"score_threshold,omitempty"`
}

type searchResultItem struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Score     float32         `json:"score"`
	Metadata  metadataPayload `json:"metadata"`
	CreatedAt int32           `json:"created_at"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

// SearchDocuments handles POST /search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	limit := 0
	if req.Limit != nil {
		if *req.Limit <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be positive")
			return
		}
		limit = *req.Limit
	}
	var threshold float32
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}

	results, err := s.knowledge.Search(r.Context(), req.Query, limit, threshold)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			ID:    strconv.FormatInt(res.ID, 10),
			Text:  res.Text,
			Score: res.Score,
			Metadata: metadataPayload{
				Topic:  res.Metadata.Topic,
				Weight: res.Metadata.Weight,
				Title:  res.Metadata.Title,
				Tags:   res.Metadata.Tags,
			},
			CreatedAt: res.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

type collectionResponse struct {
	Name      string            `json:"name"`
	Dimension int               `json:"dimension"`
	Stats     map[string]string `json:"stats,omitempty"`
}

// GetCollection handles GET /collection.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	info, err := s.knowledge.Info(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, collectionResponse{
		Name:      info.Name,
		Dimension: info.Dimension,
		Stats:     info.Stats,
	})
}

type collectionListResponse struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.knowledge.ListCollections(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, collectionListResponse{Items: names, Total: len(names)})
}

// DeleteCollection handles DELETE /collections/{collection}. Deleting an
// absent collection returns 204 like a successful delete.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	if name == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "collection name is required")
		return
	}

	if err := s.knowledge.DropCollection(r.Context(), name); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrInvalidItem,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
