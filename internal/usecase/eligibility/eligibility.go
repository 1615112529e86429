// Package eligibility filters the subscriber set for a candidate
// notification and assigns per-tier delivery delays.
package eligibility

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
)

// TierPolicy is the typed per-tier entitlement table, resolved once at
// startup. Nil slices mean unrestricted.
type TierPolicy struct {
	Symbols      []string
	PatternTypes []domain.PatternType
	// DailyQuota caps successful notifications per UTC day; 0 = unlimited.
	DailyQuota int
	// Delay postpones delivery. Advisory: the scheduling layer honours it,
	// the dispatcher does not.
	Delay time.Duration
}

// PolicyTable maps each tier to its policy.
type PolicyTable map[domain.Tier]TierPolicy

// DefaultPolicies returns the production tier table.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		domain.TierFree: {
			Symbols:      []string{"BTC/USDT"},
			PatternTypes: []domain.PatternType{domain.PatternFVG},
			DailyQuota:   1,
			Delay:        10 * time.Minute,
		},
		domain.TierPro: {
			Symbols:    []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT", "XRP/USDT"},
			DailyQuota: 20,
		},
		domain.TierPremium: {},
	}
}

// AllowsPattern reports whether the tier may receive signals of this type.
func (p TierPolicy) AllowsPattern(pt domain.PatternType) bool {
	if len(p.PatternTypes) == 0 {
		return true
	}
	for _, allowed := range p.PatternTypes {
		if allowed == pt {
			return true
		}
	}
	return false
}

// AllowsSymbol reports whether the tier may receive signals for the symbol.
func (p TierPolicy) AllowsSymbol(symbol string) bool {
	if len(p.Symbols) == 0 {
		return true
	}
	for _, allowed := range p.Symbols {
		if allowed == symbol {
			return true
		}
	}
	return false
}

// Limiter applies account, subscription, tier and quota checks.
type Limiter struct {
	subs     domain.SubscriberRepository
	outcomes domain.NotificationRepository
	policies PolicyTable
	log      zerolog.Logger
	now      func() time.Time
}

func NewLimiter(subs domain.SubscriberRepository, outcomes domain.NotificationRepository, policies PolicyTable, log zerolog.Logger) *Limiter {
	return &Limiter{
		subs:     subs,
		outcomes: outcomes,
		policies: policies,
		log:      log.With().Str("component", "eligibility").Logger(),
		now:      time.Now,
	}
}

// EligibleSubscribers returns the subscribers that may receive a signal of
// the given pattern type right now. An empty patternType skips the
// allowlist check (used for broadcasts). A quota lookup failure excludes
// just that subscriber, never the whole batch.
func (l *Limiter) EligibleSubscribers(ctx context.Context, patternType domain.PatternType) ([]domain.Subscriber, error) {
	subs, err := l.subs.All(ctx)
	if err != nil {
		return nil, err
	}

	now := l.now()
	dayStart := now.UTC().Truncate(24 * time.Hour)

	var eligible []domain.Subscriber
	for _, sub := range subs {
		if !sub.IsActive || !sub.IsVerified || !sub.NotifyEnabled {
			continue
		}
		if !sub.SubscriptionValid(now) {
			continue
		}
		policy := l.policies[sub.Tier]
		if patternType != "" && !policy.AllowsPattern(patternType) {
			continue
		}
		if policy.DailyQuota > 0 {
			count, err := l.outcomes.SuccessCountSince(ctx, sub.ID, dayStart)
			if err != nil {
				l.log.Warn().Err(err).Str("subscriber", sub.ID).Msg("quota lookup failed")
				continue
			}
			if count >= policy.DailyQuota {
				continue
			}
		}
		eligible = append(eligible, sub)
	}
	return eligible, nil
}

// NotificationDelay returns how long delivery to this subscriber should be
// postponed.
func (l *Limiter) NotificationDelay(sub domain.Subscriber) time.Duration {
	return l.policies[sub.Tier].Delay
}

// Policy returns the tier policy for a subscriber.
func (l *Limiter) Policy(sub domain.Subscriber) TierPolicy {
	return l.policies[sub.Tier]
}
