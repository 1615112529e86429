// Package notifier delivers signal notifications: a concurrent fan-out
// path for per-subscriber topics and a breaker-guarded single-topic path.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"cryptolens-backend/internal/domain"
)

// Message is one push notification payload.
type Message struct {
	Title    string
	Body     string
	Priority int
	Tags     []string
}

// Sender posts one message to one topic. Implementations are safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, topic string, msg Message) error
}

var defaultTags = []string{"chart", "money", "cryptocurrency"}

// FormatSignal renders a trade signal the way subscribers see it. The
// current price, when known, is annotated so readers can judge distance to
// entry at a glance.
func FormatSignal(sig *domain.Signal, patternType domain.PatternType, currentPrice float64, priority int) Message {
	emoji, text := "🟢", "LONG"
	if sig.Direction == domain.Short {
		emoji, text = "🔴", "SHORT"
	}

	slPct := pctFrom(sig.Entry, sig.StopLoss)
	tp1Pct := pctFrom(sig.Entry, sig.TakeProfit1)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Symbol: %s\n", sig.Symbol)
	fmt.Fprintf(&b, "📈 Direction: %s\n", text)
	fmt.Fprintf(&b, "🔍 Pattern: %s\n", patternType.DisplayName())
	fmt.Fprintf(&b, "⏱️ Timeframes: %s\n", alignedList(sig.AlignedTimeframes))
	if currentPrice > 0 {
		fmt.Fprintf(&b, "📍 Price: $%.4f\n", currentPrice)
	}
	fmt.Fprintf(&b, "💰 Limit Entry: $%.4f\n", sig.Entry)
	fmt.Fprintf(&b, "🛑 Stop Loss: $%.4f (%.2f%%)\n", sig.StopLoss, slPct)
	fmt.Fprintf(&b, "🎯 TP1: $%.4f (%.2f%%)\n", sig.TakeProfit1, tp1Pct)
	fmt.Fprintf(&b, "⚖️ R:R %.1f\n", sig.RiskReward)
	fmt.Fprintf(&b, "🔗 Confluence: %d/%d TFs", sig.ConfluenceScore, len(domain.Timeframes))

	return Message{
		Title:    fmt.Sprintf("%s %s: %s", emoji, text, sig.Symbol),
		Body:     b.String(),
		Priority: priority,
		Tags:     defaultTags,
	}
}

// FormatExpiryWarning renders the subscription expiry reminder sent to a
// subscriber's personal topic.
func FormatExpiryWarning(sub domain.Subscriber, daysLeft int) Message {
	day := "days"
	if daysLeft == 1 {
		day = "day"
	}
	return Message{
		Title:    fmt.Sprintf("⏳ Subscription expires in %d %s", daysLeft, day),
		Body:     fmt.Sprintf("Your %s plan expires in %d %s. Renew to keep receiving signals without interruption.", sub.Tier, daysLeft, day),
		Priority: 3,
		Tags:     []string{"hourglass_flowing_sand", "warning"},
	}
}

// FormatBroadcast renders an admin announcement.
func FormatBroadcast(title, body string, priority int) Message {
	return Message{
		Title:    title,
		Body:     body,
		Priority: priority,
		Tags:     []string{"loudspeaker"},
	}
}

func pctFrom(entry, level float64) float64 {
	if entry <= 0 {
		return 0
	}
	return math.Abs((level - entry) / entry * 100)
}

// alignedList decodes the JSON-encoded timeframe list stored on the signal.
// A decode failure falls back to the raw string rather than dropping the
// line.
func alignedList(encoded string) string {
	var tfs []string
	if err := json.Unmarshal([]byte(encoded), &tfs); err != nil || len(tfs) == 0 {
		return encoded
	}
	return strings.Join(tfs, ", ")
}
