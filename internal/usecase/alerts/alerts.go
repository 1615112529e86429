// Package alerts covers the non-signal notification paths: subscription
// expiry warnings and admin broadcasts.
package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/notifier"
)

// warningDays are the pre-expiry checkpoints, in days before expiry.
var warningDays = []int{7, 3, 1}

// Warner sends daily subscription expiry warnings over each subscriber's
// personal topic.
type Warner struct {
	subs     domain.SubscriberRepository
	dispatch *notifier.Dispatcher
	log      zerolog.Logger
	now      func() time.Time
}

func NewWarner(subs domain.SubscriberRepository, dispatch *notifier.Dispatcher, log zerolog.Logger) *Warner {
	return &Warner{
		subs:     subs,
		dispatch: dispatch,
		log:      log.With().Str("component", "expiry_warner").Logger(),
		now:      time.Now,
	}
}

// WarnExpiring notifies subscribers whose subscription expires in exactly
// 7, 3 or 1 UTC days. Meant to run once per day; re-running within the same
// day re-notifies the same subscribers, so the scheduler owns the cadence.
// Returns the number of warnings delivered.
func (w *Warner) WarnExpiring(ctx context.Context) int {
	dayStart := w.now().UTC().Truncate(24 * time.Hour)
	sent := 0
	for _, days := range warningDays {
		from := dayStart.Add(time.Duration(days) * 24 * time.Hour)
		to := from.Add(24 * time.Hour)

		subs, err := w.subs.ExpiringBetween(ctx, from, to)
		if err != nil {
			w.log.Error().Err(err).Int("days", days).Msg("expiring lookup failed")
			continue
		}
		for _, sub := range subs {
			if !sub.IsActive || !sub.NotifyEnabled || sub.NtfyTopic == "" {
				continue
			}
			msg := notifier.FormatExpiryWarning(sub, days)
			if err := w.dispatch.SendTopic(ctx, sub.NtfyTopic, msg); err != nil {
				w.log.Warn().Err(err).Str("subscriber", sub.ID).Msg("expiry warning failed")
				continue
			}
			sent++
		}
	}
	if sent > 0 {
		w.log.Info().Int("sent", sent).Msg("expiry warnings delivered")
	}
	return sent
}

// AudienceAll targets every notifiable subscriber regardless of tier.
const AudienceAll = "all"

// Broadcaster fans an admin announcement out to a tier-scoped audience.
type Broadcaster struct {
	subs     domain.SubscriberRepository
	dispatch *notifier.Dispatcher
	store    domain.NotificationRepository
	log      zerolog.Logger
	now      func() time.Time
}

func NewBroadcaster(subs domain.SubscriberRepository, dispatch *notifier.Dispatcher, store domain.NotificationRepository, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:     subs,
		dispatch: dispatch,
		store:    store,
		log:      log.With().Str("component", "broadcaster").Logger(),
		now:      time.Now,
	}
}

// Broadcast sends the announcement to every active, notifiable subscriber
// in the audience ("all" or a tier name). Outcomes are persisted for the
// audit trail; broadcasts never count against signal quotas because only
// signal outcomes carry a signal id.
func (b *Broadcaster) Broadcast(ctx context.Context, audience, title, body string, priority int) (domain.DeliveryResult, error) {
	subs, err := b.subs.All(ctx)
	if err != nil {
		return domain.DeliveryResult{}, err
	}

	var recipients []notifier.Recipient
	for _, sub := range subs {
		if !sub.IsActive || !sub.NotifyEnabled || sub.NtfyTopic == "" {
			continue
		}
		if audience != AudienceAll && string(sub.Tier) != audience {
			continue
		}
		recipients = append(recipients, notifier.Recipient{SubscriberID: sub.ID, Topic: sub.NtfyTopic})
	}

	msg := notifier.FormatBroadcast(title, body, priority)
	res := b.dispatch.Fanout(ctx, recipients, msg)

	if len(res.Outcomes) > 0 {
		if err := b.store.RecordOutcomes(ctx, res.Outcomes); err != nil {
			b.log.Error().Err(err).Msg("persist broadcast outcomes")
		}
	}
	b.log.Info().Str("audience", audience).Int("total", res.Total).
		Int("success", res.Success).Msg("broadcast complete")
	return res, nil
}
