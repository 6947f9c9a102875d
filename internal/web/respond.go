package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/catchsmart/catchsmart/internal/domain"
)

const (
	msgUnauthorized   = "Unauthorized - Please log in again"
	msgNoFile         = "No file provided"
	msgFileTooLarge   = "File too large"
	msgStorageFailed  = "Failed to upload image"
	msgNoItems        = "No items could be extracted from the image"
	msgInternal       = "Failed to process image"
	msgHistoryFailed  = "Failed to load upload history"
	msgItemSearchFail = "Failed to search items"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// errorStatus maps pipeline errors onto an HTTP status and client message.
func (s *Server) errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, domain.ErrNoFile):
		return http.StatusBadRequest, msgNoFile
	case errors.Is(err, domain.ErrStorageMisconfigured):
		return http.StatusInternalServerError, fmt.Sprintf(
			"Storage bucket %q not found. Please create it in your storage backend.", s.opts.Bucket)
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, msgStorageFailed
	case errors.Is(err, domain.ErrExtractionEmpty):
		return http.StatusUnprocessableEntity, msgNoItems
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
