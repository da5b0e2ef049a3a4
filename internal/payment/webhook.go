package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookError carries both a client-safe message and the detailed cause so
// handlers can pick the right status code without leaking internals.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// HandleStripeWebhook verifies the event signature and applies the
// subscription lifecycle events Stripe pushes to us.
func (s *Service) HandleStripeWebhook(ctx context.Context, r *http.Request, webhookSecret string, subs SubscriptionStore) error {
	if webhookSecret == "" {
		s.logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), webhookSecret, opts)
	if err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	s.logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return s.webhookUnmarshalError(err)
		}
		active := sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing
		if err := subs.SetSubscriptionState(ctx, sub.ID, active, time.Time{}); err != nil {
			s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to update subscription %s: %v", sub.ID, err))
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process subscription update",
				InternalError: fmt.Sprintf("Failed to update subscription %s: %v", sub.ID, err),
				OriginalErr:   err,
			}
		}
		s.logger.Info("WEBHOOK", fmt.Sprintf("Subscription %s is now %s", sub.ID, sub.Status))

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return s.webhookUnmarshalError(err)
		}
		endDate := time.Now()
		if sub.EndedAt > 0 {
			endDate = time.Unix(sub.EndedAt, 0)
		}
		if err := subs.SetSubscriptionState(ctx, sub.ID, false, endDate); err != nil {
			s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to close subscription %s: %v", sub.ID, err))
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process subscription cancellation",
				InternalError: fmt.Sprintf("Failed to close subscription %s: %v", sub.ID, err),
				OriginalErr:   err,
			}
		}
		s.logger.Info("WEBHOOK", fmt.Sprintf("Subscription %s closed", sub.ID))

	default:
		s.logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	return nil
}

func (s *Service) webhookUnmarshalError(err error) *WebhookError {
	s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal webhook event data: %v", err))
	return &WebhookError{
		Category:      "processing",
		StatusCode:    http.StatusBadRequest,
		PublicError:   "Invalid event data",
		InternalError: fmt.Sprintf("Failed to unmarshal webhook event data: %v", err),
		OriginalErr:   err,
	}
}

// SubscriptionStore is the narrow slice of the data layer webhook handling
// needs.
type SubscriptionStore interface {
	SetSubscriptionState(ctx context.Context, stripeSubID string, active bool, endDate time.Time) error
}
