package http

import (
	"encoding/json"
	"net/http"

	"cryptolens-backend/internal/repository"
)

// TokenHandler manages device push-token registration.
type TokenHandler struct {
	tokens *repository.DeviceTokenRepository
}

func NewTokenHandler(tokens *repository.DeviceTokenRepository) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type TokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (h *TokenHandler) HandleRegisterToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}
	if req.Platform == "" {
		req.Platform = "android"
	}

	h.tokens.Register(req.Token, req.Platform)

	writeJSON(w, TokenResponse{
		Success: true,
		Message: "Token registered successfully",
		Count:   h.tokens.Count(),
	})
}

func (h *TokenHandler) HandleUnregisterToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	h.tokens.Unregister(req.Token)

	writeJSON(w, TokenResponse{
		Success: true,
		Message: "Token unregistered successfully",
		Count:   h.tokens.Count(),
	})
}

func (h *TokenHandler) HandleGetTokenCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, TokenResponse{
		Success: true,
		Message: "Token count retrieved",
		Count:   h.tokens.Count(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
