package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cryptolens-backend/internal/domain"
	"cryptolens-backend/internal/notifier"
	"cryptolens-backend/internal/repository"
)

type fakeSender struct {
	mu     sync.Mutex
	topics []string
	titles []string
}

func (f *fakeSender) Send(_ context.Context, topic string, msg notifier.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.titles = append(f.titles, msg.Title)
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.topics))
	copy(out, f.topics)
	return out
}

func newTestDispatcher(sender notifier.Sender, store domain.NotificationRepository) *notifier.Dispatcher {
	return notifier.NewDispatcher(sender, notifier.NewBreaker(5, time.Minute),
		repository.NewInMemorySignalRepository(), store, notifier.Config{
			MaxConcurrent:  10,
			MaxPerHost:     10,
			RequestTimeout: time.Second,
			MaxRetries:     0,
			Backoff:        time.Millisecond,
			Priority:       4,
		}, zerolog.Nop())
}

func subscriber(id, topic string, tier domain.Tier, expiresAt *time.Time) domain.Subscriber {
	return domain.Subscriber{
		ID: id, Email: id + "@example.com", NtfyTopic: topic,
		IsActive: true, IsVerified: true, NotifyEnabled: true,
		Tier: tier, SubStatus: domain.SubActive, ExpiresAt: expiresAt,
	}
}

func inDays(days int) *time.Time {
	t := time.Now().UTC().Truncate(24 * time.Hour).Add(time.Duration(days)*24*time.Hour + 6*time.Hour)
	return &t
}

func TestWarnExpiring(t *testing.T) {
	subs := repository.NewInMemorySubscriberRepository(
		subscriber("week", "topic-week", domain.TierPro, inDays(7)),
		subscriber("soon", "topic-soon", domain.TierPro, inDays(1)),
		subscriber("later", "topic-later", domain.TierPro, inDays(5)),
		subscriber("lifetime", "topic-life", domain.TierPremium, nil),
	)
	sender := &fakeSender{}
	store := repository.NewInMemoryNotificationRepository()
	w := NewWarner(subs, newTestDispatcher(sender, store), zerolog.Nop())

	if sent := w.WarnExpiring(context.Background()); sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	got := sender.sent()
	want := map[string]bool{"topic-week": true, "topic-soon": true}
	if len(got) != 2 || !want[got[0]] || !want[got[1]] || got[0] == got[1] {
		t.Errorf("topics = %v, want topic-week and topic-soon", got)
	}
}

func TestWarnExpiringSkipsMuted(t *testing.T) {
	muted := subscriber("muted", "topic-muted", domain.TierPro, inDays(3))
	muted.NotifyEnabled = false
	subs := repository.NewInMemorySubscriberRepository(muted)
	sender := &fakeSender{}
	w := NewWarner(subs, newTestDispatcher(sender, repository.NewInMemoryNotificationRepository()), zerolog.Nop())

	if sent := w.WarnExpiring(context.Background()); sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}
	if len(sender.sent()) != 0 {
		t.Errorf("deliveries = %v, want none", sender.sent())
	}
}

func TestBroadcastAll(t *testing.T) {
	subs := repository.NewInMemorySubscriberRepository(
		subscriber("a", "topic-a", domain.TierFree, nil),
		subscriber("b", "topic-b", domain.TierPro, nil),
	)
	sender := &fakeSender{}
	store := repository.NewInMemoryNotificationRepository()
	b := NewBroadcaster(subs, newTestDispatcher(sender, store), store, zerolog.Nop())

	res, err := b.Broadcast(context.Background(), AudienceAll, "Maintenance", "Downtime at 02:00 UTC", 3)
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if res.Total != 2 || res.Success != 2 {
		t.Fatalf("result = %+v, want 2/2", res)
	}
	if len(store.Outcomes()) != 2 {
		t.Errorf("outcomes = %d, want 2", len(store.Outcomes()))
	}
	for _, o := range store.Outcomes() {
		if o.SignalID != "" {
			t.Errorf("broadcast outcome carries signal id %q", o.SignalID)
		}
	}
}

func TestBroadcastTierAudience(t *testing.T) {
	subs := repository.NewInMemorySubscriberRepository(
		subscriber("a", "topic-a", domain.TierFree, nil),
		subscriber("b", "topic-b", domain.TierPro, nil),
	)
	sender := &fakeSender{}
	store := repository.NewInMemoryNotificationRepository()
	b := NewBroadcaster(subs, newTestDispatcher(sender, store), store, zerolog.Nop())

	res, err := b.Broadcast(context.Background(), "pro", "New feature", "Order block alerts are live", 3)
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("total = %d, want 1", res.Total)
	}
	if got := sender.sent(); len(got) != 1 || got[0] != "topic-b" {
		t.Errorf("topics = %v, want [topic-b]", got)
	}
}
