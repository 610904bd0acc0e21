package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const secretSeparator = "_secret_"

type StripeConfirmer struct {
	api *client.API
}

func NewStripeConfirmer(secretKey string) *StripeConfirmer {
	return &StripeConfirmer{api: client.New(secretKey, nil)}
}

// NewStripeConfirmerWithBackend confirms against a custom API backend (tests, proxies).
func NewStripeConfirmerWithBackend(secretKey string, backend stripe.Backend) *StripeConfirmer {
	return &StripeConfirmer{api: client.New(secretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})}
}

// IntentIDFromClientSecret turns "pi_X_secret_Y" into "pi_X".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, secretSeparator)
	if !ok || !strings.HasPrefix(id, "pi_") || len(id) == len("pi_") {
		return "", ErrInvalidClientSecret
	}
	return id, nil
}

func (s *StripeConfirmer) ConfirmCardPayment(ctx context.Context, clientSecret string, card CardDetails) (*Result, error) {
	id, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	if card.PaymentMethodID == "" {
		return &Result{
			PaymentIntentID: id,
			Err: &ProviderError{
				Type:    "validation_error",
				Code:    "incomplete_number",
				Message: "Your card number is incomplete.",
			},
		}, nil
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(card.PaymentMethodID),
	}
	if card.ReturnURL != "" {
		params.ReturnURL = stripe.String(card.ReturnURL)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Confirm(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && isPaymentError(stripeErr) {
			return &Result{PaymentIntentID: id, Err: fromStripeError(stripeErr)}, nil
		}
		return nil, fmt.Errorf("confirm payment intent %s: %w", id, err)
	}

	return resultFromIntent(pi), nil
}

func (s *StripeConfirmer) PaymentStatus(ctx context.Context, paymentIntentID string) (*Result, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent %s: %w", paymentIntentID, err)
	}

	res := resultFromIntent(pi)
	// still waiting on the bank after the shopper came back: the challenge was abandoned
	if res.RedirectURL != "" {
		res.RedirectURL = ""
		res.Err = authenticationRequired()
	}
	return res, nil
}

func resultFromIntent(pi *stripe.PaymentIntent) *Result {
	res := &Result{PaymentIntentID: pi.ID, Status: string(pi.Status)}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
	case stripe.PaymentIntentStatusRequiresAction:
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil && pi.NextAction.RedirectToURL.URL != "" {
			res.RedirectURL = pi.NextAction.RedirectToURL.URL
			return res
		}
		res.Err = authenticationRequired()
	default:
		res.Err = &ProviderError{
			Type:    string(stripe.ErrorTypeCard),
			Code:    "payment_intent_unexpected_state",
			Message: fmt.Sprintf("payment intent is %s", pi.Status),
		}
		if pi.LastPaymentError != nil {
			res.Err = fromStripeError(pi.LastPaymentError)
		}
	}
	return res
}

func authenticationRequired() *ProviderError {
	return &ProviderError{
		Type:    string(stripe.ErrorTypeCard),
		Code:    "authentication_required",
		Message: "The payment requires additional authentication.",
	}
}

func isPaymentError(e *stripe.Error) bool {
	return e.Type == stripe.ErrorTypeCard || e.Type == stripe.ErrorTypeInvalidRequest
}

func fromStripeError(e *stripe.Error) *ProviderError {
	return &ProviderError{
		Type:        string(e.Type),
		Code:        string(e.Code),
		DeclineCode: string(e.DeclineCode),
		Message:     e.Msg,
	}
}
