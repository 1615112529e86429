package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
)

// Config bounds the dispatcher's concurrency and retry behaviour.
type Config struct {
	// MaxConcurrent caps in-flight sends across one fan-out batch.
	MaxConcurrent int
	// MaxPerHost caps in-flight sends per destination host.
	MaxPerHost int
	// RequestTimeout bounds each individual delivery attempt.
	RequestTimeout time.Duration
	// MaxRetries is the single-topic retry budget while the breaker is closed.
	MaxRetries int
	// Backoff is the initial retry delay; it doubles per attempt.
	Backoff time.Duration
	// Priority is the default ntfy priority for signal notifications.
	Priority int
}

// Recipient pairs a subscriber with their personal topic.
type Recipient struct {
	SubscriberID string
	Topic        string
}

// Dispatcher fans signal notifications out to subscribers and drives the
// breaker-guarded single-topic path.
type Dispatcher struct {
	sender  Sender
	breaker *Breaker
	signals domain.SignalRepository
	store   domain.NotificationRepository
	cfg     Config
	log     zerolog.Logger

	// hostFor resolves a topic to its destination host for the per-host
	// cap. Topics on one ntfy server all map to the same host.
	hostFor func(topic string) string
	now     func() time.Time
	sleep   func(time.Duration)
}

func NewDispatcher(
	sender Sender,
	breaker *Breaker,
	signals domain.SignalRepository,
	store domain.NotificationRepository,
	cfg Config,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		breaker: breaker,
		signals: signals,
		store:   store,
		cfg:     cfg,
		log:     log.With().Str("component", "dispatcher").Logger(),
		hostFor: func(string) string { return "" },
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Fanout delivers one message to every recipient concurrently under the
// batch's bounded pool. One failure never affects another recipient's
// outcome and never raises: each recipient gets exactly one outcome record.
func (d *Dispatcher) Fanout(ctx context.Context, recipients []Recipient, msg Message) domain.DeliveryResult {
	if len(recipients) == 0 {
		return domain.DeliveryResult{}
	}

	// Pool scoped to this batch. No cross-batch state to leak.
	global := make(chan struct{}, d.cfg.MaxConcurrent)
	perHost := make(map[string]chan struct{})
	for _, r := range recipients {
		host := d.hostFor(r.Topic)
		if _, ok := perHost[host]; !ok {
			perHost[host] = make(chan struct{}, d.cfg.MaxPerHost)
		}
	}

	outcomes := make([]domain.NotificationOutcome, len(recipients))
	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r Recipient) {
			defer wg.Done()
			host := perHost[d.hostFor(r.Topic)]

			global <- struct{}{}
			host <- struct{}{}
			defer func() {
				<-host
				<-global
			}()

			sendCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
			err := d.sender.Send(sendCtx, r.Topic, msg)
			cancel()

			outcome := domain.NotificationOutcome{
				SubscriberID: r.SubscriberID,
				Success:      err == nil,
				SentAt:       d.now(),
			}
			if err != nil {
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
		}(i, r)
	}
	wg.Wait()

	res := domain.DeliveryResult{Total: len(recipients), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Success {
			res.Success++
		} else {
			res.Failed++
		}
	}
	return res
}

// NotifySignal formats the signal once, fans it out, persists every outcome
// plus a summary record, and advances the signal to notified when at least
// one subscriber received it. A total failure leaves the signal pending so
// a later run can retry delivery.
func (d *Dispatcher) NotifySignal(ctx context.Context, sig *domain.Signal, patternType domain.PatternType, recipients []Recipient, currentPrice float64) domain.DeliveryResult {
	msg := FormatSignal(sig, patternType, currentPrice, d.cfg.Priority)
	res := d.Fanout(ctx, recipients, msg)

	for i := range res.Outcomes {
		res.Outcomes[i].SignalID = sig.ID
	}
	if len(res.Outcomes) > 0 {
		if err := d.store.RecordOutcomes(ctx, res.Outcomes); err != nil {
			d.log.Error().Err(err).Str("signal", sig.ID).Msg("persist outcomes")
		}
	}

	summary := &domain.Notification{
		ID:        uuid.NewString(),
		SignalID:  sig.ID,
		Channel:   "ntfy",
		Success:   res.Delivered(),
		CreatedAt: d.now(),
	}
	if !res.Delivered() {
		summary.ErrorMessage = fmt.Sprintf("all %d deliveries failed", res.Total)
	}
	if err := d.store.RecordSummary(ctx, summary); err != nil {
		d.log.Error().Err(err).Str("signal", sig.ID).Msg("persist summary")
	}

	if res.Delivered() {
		if err := d.signals.MarkNotified(ctx, sig.ID, d.now()); err != nil {
			d.log.Error().Err(err).Str("signal", sig.ID).Msg("mark notified")
		}
	}

	d.log.Info().Str("signal", sig.ID).Int("total", res.Total).
		Int("success", res.Success).Int("failed", res.Failed).Msg("fan-out complete")
	return res
}

// SendTopic is the single-topic path: one breaker-guarded send, retried
// with exponential backoff while the breaker stays closed. While the
// breaker is open the call fails immediately without touching the network
// or consuming retry budget.
func (d *Dispatcher) SendTopic(ctx context.Context, topic string, msg Message) error {
	backoff := d.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if err := d.breaker.Allow(); err != nil {
			return err
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
		err := d.sender.Send(sendCtx, topic, msg)
		cancel()
		if err == nil {
			d.breaker.Success()
			return nil
		}
		d.breaker.Failure()
		lastErr = err
		d.log.Warn().Err(err).Str("topic", topic).Int("attempt", attempt+1).
			Msg("single-topic send failed")

		if attempt < d.cfg.MaxRetries {
			d.sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}
