package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"marketplace/internal/config"
	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
)

// StripeGateway is the card rail. Credentials are injected at construction;
// nothing touches package-level Stripe state.
type StripeGateway struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeGateway(cfg config.StripeConfig, log *logger.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is not configured")
	}
	sc := client.New(cfg.SecretKey, nil)
	log.Info("STRIPE", "Stripe client initialized")
	return &StripeGateway{client: sc, log: log}, nil
}

// Capture attaches the payment method to the buyer's customer record,
// creates a manually confirmed payment intent for the order total, and
// extracts the resulting charge reference.
func (g *StripeGateway) Capture(ctx context.Context, req CaptureRequest) (string, error) {
	customer, err := g.getOrCreateCustomer(ctx, req.CustomerEmail)
	if err != nil {
		return "", marketerr.Providerf("stripe customer lookup failed: %v", err)
	}

	attachParams := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customer.ID),
	}
	attachParams.Context = ctx
	if _, err := g.client.PaymentMethods.Attach(req.MethodToken, attachParams); err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to attach payment method for order %s: %v", req.OrderID, err))
		return "", marketerr.Providerf("stripe attach failed: %v", err)
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(toMinorUnits(req.Amount)),
		Currency:           stripe.String(req.Currency),
		Customer:           stripe.String(customer.ID),
		PaymentMethod:      stripe.String(req.MethodToken),
		ConfirmationMethod: stripe.String("manual"),
		Confirm:            stripe.Bool(true),
	}
	piParams.Context = ctx
	piParams.AddMetadata("order_id", req.OrderID)

	intent, err := g.client.PaymentIntents.New(piParams)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent for order %s: %v", req.OrderID, err))
		return "", marketerr.Providerf("stripe payment intent failed: %v", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		g.log.Error("STRIPE", fmt.Sprintf("Payment intent %s for order %s not finalized: %s", intent.ID, req.OrderID, intent.Status))
		return "", marketerr.Providerf("stripe payment not finalized: status %s", intent.Status)
	}
	if intent.LatestCharge == nil || intent.LatestCharge.ID == "" {
		return "", marketerr.Providerf("stripe payment intent %s has no charge", intent.ID)
	}

	g.log.Info("STRIPE", fmt.Sprintf("Captured order %s, charge %s", req.OrderID, intent.LatestCharge.ID))
	return intent.LatestCharge.ID, nil
}

// Refund reverses a charge in full.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (string, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(req.ChargeID),
		Amount: stripe.Int64(toMinorUnits(req.Amount)),
	}
	params.Context = ctx

	refund, err := g.client.Refunds.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Refund against charge %s failed: %v", req.ChargeID, err))
		return "", marketerr.Providerf("stripe refund failed: %v", err)
	}

	g.log.Info("STRIPE", fmt.Sprintf("Refunded charge %s, refund %s", req.ChargeID, refund.ID))
	return refund.ID, nil
}

func (g *StripeGateway) getOrCreateCustomer(ctx context.Context, email string) (*stripe.Customer, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := g.client.Customers.List(listParams)
	for iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	createParams := &stripe.CustomerParams{Email: stripe.String(email)}
	createParams.Context = ctx
	return g.client.Customers.New(createParams)
}
