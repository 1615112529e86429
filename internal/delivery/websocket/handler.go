// Package websocket streams the live pattern and signal state to browser
// clients.
package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
)

const (
	pushInterval = 5 * time.Second
	recentLimit  = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// snapshot is the frame pushed to every connected client.
type snapshot struct {
	Patterns []domain.Pattern `json:"patterns"`
	Signals  []domain.Signal  `json:"signals"`
	At       time.Time        `json:"at"`
}

// Handler upgrades connections and pushes a state snapshot on connect and
// every pushInterval after.
type Handler struct {
	patterns domain.PatternRepository
	signals  domain.SignalRepository
	log      zerolog.Logger
}

func NewHandler(patterns domain.PatternRepository, signals domain.SignalRepository, log zerolog.Logger) *Handler {
	return &Handler{
		patterns: patterns,
		signals:  signals,
		log:      log.With().Str("component", "websocket").Logger(),
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	if err := conn.WriteJSON(h.snapshot(r)); err != nil {
		h.log.Debug().Err(err).Msg("initial write failed")
		return
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(h.snapshot(r)); err != nil {
				h.log.Debug().Err(err).Msg("client gone")
				return
			}
		}
	}
}

func (h *Handler) snapshot(r *http.Request) snapshot {
	ctx := r.Context()
	symbol := r.URL.Query().Get("symbol")

	patterns, err := h.patterns.Active(ctx, symbol)
	if err != nil {
		h.log.Warn().Err(err).Msg("pattern snapshot failed")
	}
	signals, err := h.signals.Recent(ctx, recentLimit)
	if err != nil {
		h.log.Warn().Err(err).Msg("signal snapshot failed")
	}
	return snapshot{Patterns: patterns, Signals: signals, At: time.Now().UTC()}
}
