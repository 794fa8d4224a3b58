package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vaidashi/storefront-api/internal/models"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
)

type ApiResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Store     string `json:"store"`
	Timestamp string `json:"timestamp"`
}

const version = "1.0.0"

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   version,
		Store:     s.config.StoreDriver,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", "error", err)
		health.Status = "degraded"
		s.respondWithJSON(w, http.StatusServiceUnavailable, ApiResponse{
			Success: false,
			Data:    health,
			Error:   "store unavailable",
			Code:    apperrors.KindServiceUnavailable,
		})
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// respondWithError maps err onto the response envelope
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.StatusCode(err)
	kind := apperrors.Kind(err)
	message := err.Error()

	if kind == apperrors.KindInternal {
		s.logger.Error("Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	response := ApiResponse{
		Success: false,
		Error:   message,
		Code:    kind,
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && len(appErr.Context) > 0 && kind != apperrors.KindInternal {
		response.Details = appErr.Context
	}

	s.respondWithJSON(w, status, response)
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (s *Server) respondWithData(w http.ResponseWriter, code int, data interface{}) {
	s.respondWithJSON(w, code, ApiResponse{Success: true, Data: data})
}

// decodeJSON reads the request body into dst. An empty body is allowed when
// optional is set.
func decodeJSON(r *http.Request, dst interface{}, optional bool) error {
	defer r.Body.Close()

	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return apperrors.NewValidationError("Invalid request payload")
}

// pageParams reads page and limit; invalid values fall back to defaults
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return page, limit
}

func (s *Server) caller(r *http.Request) models.Identity {
	id, _ := identityFrom(r.Context())
	return id
}
