package domain

import "time"

// Tier is the subscription level that gates signal access.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// SubscriptionStatus is the administrative state of a subscription.
// Cancelled and suspended subscriptions never grant access; an expired one
// may still be inside its grace window.
type SubscriptionStatus string

const (
	SubActive    SubscriptionStatus = "active"
	SubExpired   SubscriptionStatus = "expired"
	SubCancelled SubscriptionStatus = "cancelled"
	SubSuspended SubscriptionStatus = "suspended"
)

// Subscriber is the read-only user+subscription projection consumed by the
// eligibility filter and the dispatcher.
type Subscriber struct {
	ID              string             `json:"id"`
	Email           string             `json:"email"`
	NtfyTopic       string             `json:"ntfyTopic"`
	IsActive        bool               `json:"isActive"`
	IsVerified      bool               `json:"isVerified"`
	NotifyEnabled   bool               `json:"notifyEnabled"`
	Tier            Tier               `json:"tier"`
	SubStatus       SubscriptionStatus `json:"subscriptionStatus"`
	ExpiresAt       *time.Time         `json:"expiresAt,omitempty"` // nil = lifetime
	GracePeriodDays int                `json:"gracePeriodDays"`
}

// IsLifetime reports whether the subscription never expires.
func (s Subscriber) IsLifetime() bool { return s.ExpiresAt == nil }

// InGracePeriod reports whether now falls between expiry and the end of the
// grace window. The boundary instant is still in grace (inclusive): access
// is not cut off early.
func (s Subscriber) InGracePeriod(now time.Time) bool {
	if s.IsLifetime() || !now.After(*s.ExpiresAt) {
		return false
	}
	graceEnd := s.ExpiresAt.Add(time.Duration(s.GracePeriodDays) * 24 * time.Hour)
	return !now.After(graceEnd)
}

// SubscriptionValid reports whether the subscription grants access at now:
// not cancelled or suspended, and lifetime, unexpired, or within grace.
func (s Subscriber) SubscriptionValid(now time.Time) bool {
	if s.SubStatus != SubActive && s.SubStatus != SubExpired {
		return false
	}
	if s.IsLifetime() {
		return true
	}
	if !now.After(*s.ExpiresAt) {
		return true
	}
	return s.InGracePeriod(now)
}
