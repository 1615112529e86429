// Package fcm delivers signal alerts to registered mobile devices over
// Firebase Cloud Messaging. It is a secondary channel next to ntfy: the
// dispatcher's delivery accounting never depends on it.
package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const alertChannelID = "signal_alerts"

// Client wraps the FCM messaging client. A nil inner client means FCM is
// disabled; sends then fail with an explicit error.
type Client struct {
	client *messaging.Client
	log    zerolog.Logger
}

// NewClient initializes FCM from a service-account credentials file. An
// empty path disables the channel without failing startup.
func NewClient(ctx context.Context, credentialsPath string, log zerolog.Logger) (*Client, error) {
	log = log.With().Str("component", "fcm").Logger()
	if credentialsPath == "" {
		log.Warn().Msg("no credentials configured, FCM disabled")
		return &Client{log: log}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("fcm: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: messaging client: %w", err)
	}

	log.Info().Msg("FCM initialized")
	return &Client{client: client, log: log}, nil
}

// Enabled reports whether the channel is configured.
func (c *Client) Enabled() bool { return c.client != nil }

// Send pushes one alert to a single device token.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if c.client == nil {
		return fmt.Errorf("fcm: disabled")
	}

	_, err := c.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: alertChannelID,
				Priority:  messaging.PriorityHigh,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("fcm: send: %w", err)
	}
	return nil
}

// SendMulticast pushes one alert to up to 500 device tokens and reports
// per-token failures only in the log; a partial failure is not an error.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if c.client == nil {
		return fmt.Errorf("fcm: disabled")
	}
	if len(tokens) == 0 {
		return nil
	}

	resp, err := c.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: alertChannelID,
				Priority:  messaging.PriorityHigh,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("fcm: multicast: %w", err)
	}

	c.log.Info().Int("success", resp.SuccessCount).Int("failed", resp.FailureCount).
		Msg("multicast sent")
	return nil
}
