package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// ServiceInterface defines the contract for a payment processing service.
// Amounts are in minor currency units (cents).
type ServiceInterface interface {
	Charge(ctx context.Context, customerID string, amountCents int64, description string) (string, error)
	Refund(ctx context.Context, paymentID string) error
}

// StripeService charges a customer's saved payment method off-session.
type StripeService struct {
	client *client.API
}

func NewStripeService(apiKey string) *StripeService {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeService{client: sc}
}

// Charge creates and confirms a PaymentIntent for the given amount.
func (s *StripeService) Charge(ctx context.Context, customerID string, amountCents int64, description string) (string, error) {
	if amountCents <= 0 {
		return "", fmt.Errorf("invalid payment amount: %d", amountCents)
	}
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Customer:    stripe.String(customerID),
		Description: stripe.String(description),
		Confirm:     stripe.Bool(true),
		OffSession:  stripe.Bool(true),
	}
	params.Context = ctx

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}
	return pi.ID, nil
}

// Refund returns the full amount of a previously confirmed PaymentIntent.
func (s *StripeService) Refund(ctx context.Context, paymentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentID),
	}
	params.Context = ctx

	if _, err := s.client.Refunds.New(params); err != nil {
		return fmt.Errorf("failed to refund payment %s: %w", paymentID, err)
	}
	return nil
}
