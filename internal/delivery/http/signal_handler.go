package http

import (
	"net/http"
	"strconv"

	"cryptolens-backend/internal/domain"
)

const defaultRecentSignals = 50

// SignalHandler serves the read-only pattern and signal views.
type SignalHandler struct {
	patterns domain.PatternRepository
	signals  domain.SignalRepository
}

func NewSignalHandler(patterns domain.PatternRepository, signals domain.SignalRepository) *SignalHandler {
	return &SignalHandler{patterns: patterns, signals: signals}
}

// HandleRecentSignals returns the most recent signals, newest first.
// Optional ?limit=N caps the page size.
func (h *SignalHandler) HandleRecentSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultRecentSignals
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	signals, err := h.signals.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to load signals", http.StatusInternalServerError)
		return
	}
	if signals == nil {
		signals = []domain.Signal{}
	}
	writeJSON(w, signals)
}

// HandleActivePatterns returns active pattern zones, optionally restricted
// to one symbol via ?symbol=BTC/USDT.
func (h *SignalHandler) HandleActivePatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	patterns, err := h.patterns.Active(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		http.Error(w, "Failed to load patterns", http.StatusInternalServerError)
		return
	}
	if patterns == nil {
		patterns = []domain.Pattern{}
	}
	writeJSON(w, patterns)
}
