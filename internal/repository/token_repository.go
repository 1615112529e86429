package repository

import (
	"sync"
	"time"
)

// DeviceToken is one registered mobile device for FCM signal alerts.
type DeviceToken struct {
	Token        string
	Platform     string // "android" or "ios"
	RegisteredAt time.Time
}

// DeviceTokenRepository keeps the registered device tokens in memory.
// Tokens are re-registered by the app on startup, so process restarts are
// acceptable.
type DeviceTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]DeviceToken
}

func NewDeviceTokenRepository() *DeviceTokenRepository {
	return &DeviceTokenRepository{tokens: make(map[string]DeviceToken)}
}

// Register adds or refreshes a device token.
func (r *DeviceTokenRepository) Register(token, platform string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = DeviceToken{
		Token:        token,
		Platform:     platform,
		RegisteredAt: time.Now(),
	}
}

// Unregister drops a device token, typically after FCM reports it stale.
func (r *DeviceTokenRepository) Unregister(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
}

// Tokens returns every registered token.
func (r *DeviceTokenRepository) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		out = append(out, token)
	}
	return out
}

// Count returns the number of registered devices.
func (r *DeviceTokenRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
