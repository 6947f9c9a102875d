package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/catchsmart/catchsmart/internal/domain"
)

type uploadsResponse struct {
	Uploads []*domain.Upload `json:"uploads"`
}

type itemsResponse struct {
	Items []*domain.StoredItem `json:"items"`
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	uploads, err := s.service.ListUploads(r.Context(), user, limit)
	if err != nil {
		s.logger.Error("list uploads failed", "user_id", user.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, msgHistoryFailed)
		return
	}
	s.writeJSON(w, http.StatusOK, uploadsResponse{Uploads: uploads})
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	items, err := s.service.SearchItems(r.Context(), user, query)
	if err != nil {
		s.logger.Error("item search failed", "user_id", user.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, msgItemSearchFail)
		return
	}
	s.writeJSON(w, http.StatusOK, itemsResponse{Items: items})
}
