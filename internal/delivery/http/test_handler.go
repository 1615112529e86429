package http

import (
	"net/http"

	"cryptolens-backend/internal/infrastructure/fcm"
	"cryptolens-backend/internal/repository"
)

// TestHandler fires a test push to every registered device so operators can
// verify the FCM path end to end.
type TestHandler struct {
	fcmClient *fcm.Client
	tokens    *repository.DeviceTokenRepository
}

func NewTestHandler(fcmClient *fcm.Client, tokens *repository.DeviceTokenRepository) *TestHandler {
	return &TestHandler{fcmClient: fcmClient, tokens: tokens}
}

func (h *TestHandler) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.fcmClient == nil || !h.fcmClient.Enabled() {
		writeJSON(w, map[string]any{
			"success": false,
			"message": "FCM not configured",
		})
		return
	}

	tokens := h.tokens.Tokens()
	if len(tokens) == 0 {
		writeJSON(w, map[string]any{
			"success": false,
			"message": "No registered devices",
			"count":   0,
		})
		return
	}

	title := "🧪 Test Notification"
	body := "This is a test notification. If you see this, push delivery is working! ✅"
	data := map[string]string{"type": "test"}

	if err := h.fcmClient.SendMulticast(r.Context(), tokens, title, body, data); err != nil {
		writeJSON(w, map[string]any{
			"success": false,
			"message": "Failed to send notification: " + err.Error(),
			"count":   len(tokens),
		})
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"message": "Test notification sent successfully",
		"count":   len(tokens),
	})
}
