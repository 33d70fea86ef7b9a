package Notifications

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"Rondin/Models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"
)

type DeliveryStatus string

const (
	DeliveryOK      DeliveryStatus = "ok"
	DeliveryDeleted DeliveryStatus = "deleted"
	DeliveryError   DeliveryStatus = "error"
)

// DeliveryResult is the per-endpoint outcome of a dispatch. Callers must not
// treat a partial failure as a whole-operation failure.
type DeliveryResult struct {
	SubscriptionID uint           `json:"subscription_id"`
	Endpoint       string         `json:"endpoint"`
	Status         DeliveryStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Dispatcher fans a message out to every push endpoint a user has registered.
// Send is swappable for tests.
type Dispatcher struct {
	DB              *gorm.DB
	TTL             int
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Send            func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{
		DB:              db,
		TTL:             60,
		Subscriber:      os.Getenv("VAPID_SUBSCRIBER"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		Send:            webpush.SendNotification,
	}
}

// Dispatch delivers to every endpoint of the user concurrently. One endpoint's
// failure never aborts delivery to the others. Zero endpoints is a successful
// no-op. The returned error covers only the subscription lookup itself.
func (d *Dispatcher) Dispatch(userID uint, title, body, url string) ([]DeliveryResult, error) {
	var subs []Models.PushSubscription
	if err := d.DB.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load push subscriptions for user %d: %w", userID, err)
	}
	if len(subs) == 0 {
		return []DeliveryResult{}, nil
	}

	payload, err := json.Marshal(pushPayload{Title: title, Body: body, URL: url})
	if err != nil {
		return nil, err
	}

	results := make([]DeliveryResult, len(subs))
	var wg sync.WaitGroup
	for i := range subs {
		wg.Add(1)
		go func(i int, sub Models.PushSubscription) {
			defer wg.Done()
			results[i] = d.deliver(sub, payload)
		}(i, subs[i])
	}
	wg.Wait()

	return results, nil
}

func (d *Dispatcher) deliver(sub Models.PushSubscription, payload []byte) DeliveryResult {
	result := DeliveryResult{SubscriptionID: sub.ID, Endpoint: sub.Endpoint}

	resp, err := d.Send(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		Subscriber:      d.Subscriber,
		VAPIDPublicKey:  d.VAPIDPublicKey,
		VAPIDPrivateKey: d.VAPIDPrivateKey,
		TTL:             d.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		log.Printf("Push delivery to subscription %d failed: %v", sub.ID, err)
		result.Status = DeliveryError
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The push service no longer knows this endpoint, drop it.
		if err := d.DB.Unscoped().Delete(&Models.PushSubscription{}, sub.ID).Error; err != nil {
			log.Printf("Failed to delete stale subscription %d: %v", sub.ID, err)
			result.Status = DeliveryError
			result.Error = err.Error()
			return result
		}
		result.Status = DeliveryDeleted
	case resp.StatusCode >= 400:
		log.Printf("Push service rejected subscription %d with status %d", sub.ID, resp.StatusCode)
		result.Status = DeliveryError
		result.Error = fmt.Sprintf("push service returned status %d", resp.StatusCode)
	default:
		now := time.Now().UTC()
		if err := d.DB.Model(&Models.PushSubscription{}).
			Where("id = ?", sub.ID).
			Update("last_used_at", now).Error; err != nil {
			log.Printf("Failed to stamp last_used_at on subscription %d: %v", sub.ID, err)
		}
		result.Status = DeliveryOK
	}
	return result
}
