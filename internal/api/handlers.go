// Package api provides HTTP handlers for the engine's endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fizzycl/partsflow/internal/models"
)

// incomingHandler accepts a delivery notification for a user message.
func (s *Server) incomingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.incomingHandler: processing incoming notification", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	log, ok := decodeMessageLog(w, r)
	if !ok {
		return
	}
	if log.Origin != "" && log.Origin != models.OriginIncoming {
		slog.Warn("Server.incomingHandler: origin mismatch", "origin", log.Origin, "phone", log.PhoneNumber)
		writeJSONResponse(w, http.StatusBadRequest, errorResponse("Origin must be "+models.OriginIncoming))
		return
	}

	resp, err := s.engine.Incoming(r.Context(), log)
	if err != nil {
		slog.Error("Server.incomingHandler: engine failed", "error", err, "phone", log.PhoneNumber)
		writeJSONResponse(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// outgoingHandler accepts a delivery notification addressed to this engine.
func (s *Server) outgoingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.outgoingHandler: processing outgoing notification", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	log, ok := decodeMessageLog(w, r)
	if !ok {
		return
	}

	resp, err := s.engine.Outgoing(r.Context(), log)
	if err != nil {
		slog.Error("Server.outgoingHandler: engine failed", "error", err, "phone", log.PhoneNumber)
		writeJSONResponse(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// webhookVerifyHandler answers the provider's subscription challenge.
func (s *Server) webhookVerifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != s.verifyToken {
		slog.Warn("Server.webhookVerifyHandler: verification rejected", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("Server.webhookVerifyHandler: webhook verified")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// decodeMessageLog parses the request body, writing a 400 on failure.
func decodeMessageLog(w http.ResponseWriter, r *http.Request) (models.MessageLog, bool) {
	var log models.MessageLog
	if err := json.NewDecoder(r.Body).Decode(&log); err != nil {
		slog.Warn("Server.decodeMessageLog: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, errorResponse("Invalid JSON format"))
		return models.MessageLog{}, false
	}
	if log.PhoneNumber == "" {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse("Missing required field: phone_number"))
		return models.MessageLog{}, false
	}
	return log, true
}
