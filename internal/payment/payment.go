package payment

import (
	"context"
	"errors"
	"fmt"
)

var ErrInvalidClientSecret = errors.New("invalid payment intent client secret")

// CardDetails is what the card widget hands over after tokenizing the card.
type CardDetails struct {
	PaymentMethodID string
	// ReturnURL is where the provider sends the shopper back after a bank authentication challenge.
	ReturnURL string
}

// ProviderError is an error the payment provider reported about the payment itself
// (declined card, authentication required, invalid request).
type ProviderError struct {
	Type        string
	Code        string
	DeclineCode string
	Message     string
}

func (e *ProviderError) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("payment %s (%s/%s): %s", e.Type, e.Code, e.DeclineCode, e.Message)
	}
	return fmt.Sprintf("payment %s (%s): %s", e.Type, e.Code, e.Message)
}

// Result mirrors the provider's confirmation outcome. Err is set when the
// provider refused the payment; transport failures are returned as errors instead.
type Result struct {
	PaymentIntentID string
	Status          string
	// RedirectURL is set when the shopper has to authenticate with their bank before the payment settles.
	RedirectURL string
	Err         *ProviderError
}

func (r *Result) Succeeded() bool {
	return r != nil && r.Err == nil && r.RedirectURL == ""
}

func (r *Result) RequiresAuthentication() bool {
	return r != nil && r.Err == nil && r.RedirectURL != ""
}

type Confirmer interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card CardDetails) (*Result, error)
	// PaymentStatus reports how a payment ended once the shopper is back from authentication.
	PaymentStatus(ctx context.Context, paymentIntentID string) (*Result, error)
}
