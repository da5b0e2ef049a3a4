package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// CaptureRequest asks a gateway to charge a payment method for an order's
// total and return the provider-side charge reference.
type CaptureRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	// MethodToken identifies the instrument: a payment-method id on the card
	// rail, a pre-authorized external order id on the PayPal rail.
	MethodToken string
}

// RefundRequest reverses a captured charge for the full amount.
type RefundRequest struct {
	ChargeID string
	Amount   decimal.Decimal
	Currency string
}

// Gateway abstracts a payment rail so either provider can be swapped or
// mocked. Implementations return opaque provider references.
type Gateway interface {
	Capture(ctx context.Context, req CaptureRequest) (chargeRef string, err error)
	Refund(ctx context.Context, req RefundRequest) (txnRef string, err error)
}

// toMinorUnits converts a decimal amount to the smallest currency unit.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
