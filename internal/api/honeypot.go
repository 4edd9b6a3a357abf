package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/engage"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// MessageRequest is the body of POST /honeypot/message.
type MessageRequest struct {
	SessionID           string           `json:"sessionId"`
	Message             *domain.Message  `json:"message"`
	ConversationHistory []domain.Message `json:"conversationHistory,omitempty"`
	Metadata            *domain.Metadata `json:"metadata,omitempty"`
}

// MessageResponse is returned for every accepted turn.
type MessageResponse struct {
	Status       string  `json:"status"`
	Reply        string  `json:"reply"`
	ScamDetected bool    `json:"scamDetected"`
	Confidence   float64 `json:"confidence"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	TotalSessions  int     `json:"totalSessions"`
	ActiveSessions int     `json:"activeSessions"`
	ScamSessions   int     `json:"scamSessions"`
	DetectionRate  float64 `json:"detectionRate"`
	Timestamp      int64   `json:"timestamp"`
}

func (req *MessageRequest) validate() error {
	if req.SessionID == "" {
		return errors.New("sessionId is required")
	}
	if req.Message == nil {
		return errors.New("message is required")
	}
	if !req.Message.Sender.Valid() {
		return fmt.Errorf("message.sender must be %q or %q", domain.SenderScammer, domain.SenderUser)
	}
	return nil
}

// Message handles one inbound turn.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engager.HandleTurn(r.Context(), engage.Turn{
		SessionID: req.SessionID,
		Message:   *req.Message,
		History:   req.ConversationHistory,
		Metadata:  req.Metadata,
	})
	switch {
	case errors.Is(err, engage.ErrEmptySessionID), errors.Is(err, engage.ErrInvalidSender):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Error processing message",
			"session_id", req.SessionID,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"error", err,
		)
		Error(w, http.StatusInternalServerError, "Internal processing error")
		return
	}

	JSON(w, http.StatusOK, MessageResponse{
		Status:       "success",
		Reply:        res.Reply,
		ScamDetected: res.ScamDetected,
		Confidence:   res.Confidence,
	})
}

// Stats reports aggregate session counts.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	st := h.engager.Stats()
	JSON(w, http.StatusOK, StatsResponse{
		TotalSessions:  st.Total,
		ActiveSessions: st.Active,
		ScamSessions:   st.Scam,
		DetectionRate:  st.DetectionRate(),
		Timestamp:      h.now().UnixMilli(),
	})
}

// Info describes the service and its endpoints.
func (h *Handler) Info(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   ServiceName,
		"version":   Version,
		"timestamp": h.now().UnixMilli(),
		"endpoints": map[string]string{
			"honeypot": "/honeypot/message",
			"stats":    "/stats",
			"events":   "/ws/events",
		},
	})
}
