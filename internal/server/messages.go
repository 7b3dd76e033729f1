package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"whalewatch/internal/alert"
	"whalewatch/internal/ingest"
	"whalewatch/internal/retrieval"
	"whalewatch/internal/storage"
)

type submitMessageRequest struct {
	Username    string             `json:"username"`
	Content     *string            `json:"content"`
	ChannelID   string             `json:"channelId"`
	Attachments []alert.Attachment `json:"attachments"`
	Embeds      []alert.Embed      `json:"embeds"`
}

func (req submitMessageRequest) submission() (ingest.Submission, error) {
	if req.Content == nil {
		return ingest.Submission{}, fmt.Errorf("%w: content is required", alert.ErrMalformedInput)
	}
	for i, a := range req.Attachments {
		if strings.TrimSpace(a.URL) == "" {
			return ingest.Submission{}, fmt.Errorf("%w: attachments[%d].url is required", alert.ErrMalformedInput, i)
		}
	}
	return ingest.Submission{
		Text:        *req.Content,
		Author:      req.Username,
		ChannelID:   req.ChannelID,
		Attachments: req.Attachments,
		Embeds:      req.Embeds,
	}, nil
}

type submitMessageResponse struct {
	Success   bool                   `json:"success"`
	Message   *alert.RawAlertMessage `json:"message,omitempty"`
	MessageID string                 `json:"messageId,omitempty"`
	Skipped   bool                   `json:"skipped,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Details   *alert.Diagnostics     `json:"details,omitempty"`
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingester == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion unavailable")
		return
	}

	var req submitMessageRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.deps.Ingester.Submit(r.Context(), sub)
	switch res.Status {
	case ingest.StatusStored:
		writeJSON(w, http.StatusCreated, submitMessageResponse{Success: true, Message: res.Message, MessageID: res.MessageID})
	case ingest.StatusSkipped:
		diag := res.Diagnostics
		writeJSON(w, http.StatusUnprocessableEntity, submitMessageResponse{
			Skipped: true,
			Error:   diag.Reason(),
			Details: &diag,
		})
	default:
		msg := "failed to store message"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, submitMessageResponse{Error: msg, MessageID: res.MessageID})
	}
}

func (s *Server) handleRecentMessages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingester == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion unavailable")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if limit == 0 {
		limit = ingest.DefaultBufferCapacity
	}
	if limit > s.opts.MaxRecentLimit {
		limit = s.opts.MaxRecentLimit
	}

	msgs, err := s.deps.Ingester.Recent(r.Context(), storage.RecordQuery{
		ChannelID: strings.TrimSpace(r.URL.Query().Get("channelId")),
		Limit:     limit,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("list recent messages failed")
		writeError(w, http.StatusServiceUnavailable, "recent messages unavailable")
		return
	}
	if msgs == nil {
		msgs = []alert.RawAlertMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleWhaleActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "whale activity unavailable"})
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	activity, err := s.deps.Activity.FetchRecent(r.Context(), retrieval.Query{
		ChannelID: strings.TrimSpace(r.URL.Query().Get("channelId")),
		Limit:     limit,
	})
	if err != nil {
		msg := "whale activity unavailable"
		if errors.Is(err, retrieval.ErrAllSourcesFailed) {
			msg = "all whale activity sources failed"
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": msg})
		return
	}
	if activity == nil {
		activity = []alert.WhaleActivity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"whaleActivity": activity})
}
