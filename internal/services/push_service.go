package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nudge/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Pusher delivers one payload to one device subscription
type Pusher interface {
	Push(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// PushPayload is the JSON document a service worker receives
type PushPayload struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  PushPayloadData `json:"data"`
}

type PushPayloadData struct {
	ReminderID    string              `json:"reminderId"`
	Type          models.ReminderType `json:"type"`
	ScheduledFor  time.Time           `json:"scheduledFor"`
	SnoozeOptions []int               `json:"snoozeOptions"`
}

// BuildPushPayload renders the wire payload of a reminder
func BuildPushPayload(r *models.Reminder, snoozeOptions []int) ([]byte, error) {
	return json.Marshal(PushPayload{
		Title: r.Title,
		Body:  r.Message,
		Data: PushPayloadData{
			ReminderID:    r.ID,
			Type:          r.Type,
			ScheduledFor:  r.ScheduledFor.UTC(),
			SnoozeOptions: snoozeOptions,
		},
	})
}

// WebPushService sends notifications with VAPID-signed Web Push requests
type WebPushService struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	timeout    time.Duration
	client     webpush.HTTPClient
}

// WebPushOptions configures the Web Push transport
type WebPushOptions struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	Timeout         time.Duration
	HTTPClient      webpush.HTTPClient
}

func NewWebPushService(opts WebPushOptions) *WebPushService {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 3600
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &WebPushService{
		publicKey:  opts.VAPIDPublicKey,
		privateKey: opts.VAPIDPrivateKey,
		subscriber: opts.Subscriber,
		ttl:        opts.TTL,
		timeout:    opts.Timeout,
		client:     opts.HTTPClient,
	}
}

// PublicKey is the application server key clients subscribe with
func (s *WebPushService) PublicKey() string {
	return s.publicKey
}

// Push sends payload to one subscription. Expired endpoints are reported as
// ErrSubscriptionGone so the caller can forget them.
func (s *WebPushService) Push(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		TTL:             s.ttl,
		Urgency:         webpush.UrgencyNormal,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: push service returned %d", ErrSubscriptionGone, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: push service returned %d", ErrTransport, resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys creates a new application server keypair
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
