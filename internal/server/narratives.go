package server

import (
	"errors"
	"net/http"
	"strings"

	"whalewatch/internal/storage"
)

func (s *Server) handleUpsertNarrative(w http.ResponseWriter, r *http.Request) {
	if s.deps.Narratives == nil {
		writeError(w, http.StatusServiceUnavailable, "narratives unavailable")
		return
	}

	var req storage.TokenNarrative
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	stored, err := s.deps.Narratives.Upsert(r.Context(), req)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store narrative")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "narrative": stored})
}

func (s *Server) handleListNarratives(w http.ResponseWriter, r *http.Request) {
	if s.deps.Narratives == nil {
		writeError(w, http.StatusServiceUnavailable, "narratives unavailable")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	items, err := s.deps.Narratives.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list narratives failed")
		writeError(w, http.StatusInternalServerError, "failed to list narratives")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"narratives": items})
}

func (s *Server) handleSearchNarratives(w http.ResponseWriter, r *http.Request) {
	if s.deps.Narratives == nil {
		writeError(w, http.StatusServiceUnavailable, "narratives unavailable")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	items, err := s.deps.Narratives.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("search narratives failed")
		writeError(w, http.StatusInternalServerError, "failed to search narratives")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": items})
}

func (s *Server) handleGetNarrative(w http.ResponseWriter, r *http.Request) {
	if s.deps.Narratives == nil {
		writeError(w, http.StatusServiceUnavailable, "narratives unavailable")
		return
	}

	n, err := s.deps.Narratives.Get(r.Context(), r.PathValue("address"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "narrative not found")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "address is required")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load narrative")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"narrative": n})
	}
}

func (s *Server) handleAddressKind(w http.ResponseWriter, r *http.Request) {
	if s.deps.Addresses == nil {
		writeError(w, http.StatusServiceUnavailable, "address classification unavailable")
		return
	}
	// Lookup failures still answer with kind "unknown".
	result, _ := s.deps.Addresses.Classify(r.Context(), r.PathValue("address"))
	writeJSON(w, http.StatusOK, result)
}
