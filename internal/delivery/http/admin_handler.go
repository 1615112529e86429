package http

import (
	"encoding/json"
	"net/http"

	"cryptolens-backend/internal/usecase/alerts"
)

// AdminHandler exposes the operator-facing broadcast endpoint. The reverse
// proxy is expected to keep /api/admin off the public internet.
type AdminHandler struct {
	broadcaster *alerts.Broadcaster
}

func NewAdminHandler(broadcaster *alerts.Broadcaster) *AdminHandler {
	return &AdminHandler{broadcaster: broadcaster}
}

type BroadcastRequest struct {
	Audience string `json:"audience"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority int    `json:"priority"`
}

type BroadcastResponse struct {
	Success bool `json:"success"`
	Total   int  `json:"total"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
}

func (h *AdminHandler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Body == "" {
		http.Error(w, "Title and body are required", http.StatusBadRequest)
		return
	}
	if req.Audience == "" {
		req.Audience = alerts.AudienceAll
	}
	if req.Priority <= 0 || req.Priority > 5 {
		req.Priority = 3
	}

	res, err := h.broadcaster.Broadcast(r.Context(), req.Audience, req.Title, req.Body, req.Priority)
	if err != nil {
		http.Error(w, "Broadcast failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, BroadcastResponse{
		Success: res.Delivered() || res.Total == 0,
		Total:   res.Total,
		Sent:    res.Success,
		Failed:  res.Failed,
	})
}
