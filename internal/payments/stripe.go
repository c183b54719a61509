package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/roadside-dispatch/internal/money"
)

// Gateway is the settlement payment surface the coordinator depends on.
// Hold places a manual-capture intent for the invoice total when the
// settlement moves to to_pay; Capture runs on payment confirmation;
// Cancel releases the hold when the job is canceled instead.
type Gateway interface {
	Hold(ctx context.Context, amount money.Amount, currency, customerID string) (string, error)
	Capture(ctx context.Context, paymentRef string) error
	Cancel(ctx context.Context, paymentRef string) error
}

// StripeGateway is a thin wrapper around stripe-go PaymentIntents.
type StripeGateway struct{}

// NewStripeGateway initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeGateway() *StripeGateway {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeGateway{}
}

func (s *StripeGateway) Hold(ctx context.Context, amount money.Amount, currency, customerID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount)),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeGateway) Capture(ctx context.Context, paymentRef string) error {
	_, err := paymentintent.Capture(paymentRef, nil)
	return err
}

func (s *StripeGateway) Cancel(ctx context.Context, paymentRef string) error {
	_, err := paymentintent.Cancel(paymentRef, nil)
	return err
}

// NopGateway is used when no payment backend is configured; every
// operation succeeds with a synthetic reference.
type NopGateway struct{}

func (NopGateway) Hold(ctx context.Context, amount money.Amount, currency, customerID string) (string, error) {
	return "nop", nil
}
func (NopGateway) Capture(ctx context.Context, paymentRef string) error { return nil }
func (NopGateway) Cancel(ctx context.Context, paymentRef string) error  { return nil }
