package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orderapi"
	"github.com/fjod/go_cart/storefront/internal/payment"
)

// settlement is a created order whose payment either went through or waits on
// the shopper authenticating with their bank at redirectURL.
type settlement struct {
	order       *domain.PlacedOrder
	intentID    string
	redirectURL string
}

// paymentStrategy creates the order and settles its payment.
type paymentStrategy func(ctx context.Context, f *Form, draft domain.OrderDraft, card payment.CardDetails) (*settlement, error)

var strategies = map[domain.PaymentMethod]paymentStrategy{
	domain.PaymentMethodCreditCard:     payByCard,
	domain.PaymentMethodCashOnDelivery: payOnDelivery,
	domain.PaymentMethodPayPal:         payWithPayPal,
}

func createOrder(ctx context.Context, f *Form, draft domain.OrderDraft) (*orderapi.CreateOrderResponse, error) {
	resp, err := f.deps.Orders.CreateOrder(ctx, draft, f.state.AuthToken())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOrderCreation, err)
	}
	return resp, nil
}

func payByCard(ctx context.Context, f *Form, draft domain.OrderDraft, card payment.CardDetails) (*settlement, error) {
	resp, err := createOrder(ctx, f, draft)
	if err != nil {
		return nil, err
	}
	secret := resp.ClientSecret()
	if secret == "" {
		return nil, fmt.Errorf("%w: %w", ErrOrderCreation, orderapi.ErrMissingClientSecret)
	}

	res, err := f.deps.Payments.ConfirmCardPayment(ctx, secret, card)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s: %w", ErrPaymentConfirmation, resp.Order.ID, err)
	}
	if res.Err != nil {
		return nil, f.declined(ctx, resp.Order, res)
	}
	return &settlement{order: resp.Order, intentID: res.PaymentIntentID, redirectURL: res.RedirectURL}, nil
}

// Cash on delivery has nothing to confirm up front.
func payOnDelivery(ctx context.Context, f *Form, draft domain.OrderDraft, _ payment.CardDetails) (*settlement, error) {
	resp, err := createOrder(ctx, f, draft)
	if err != nil {
		return nil, err
	}
	return &settlement{order: resp.Order}, nil
}

// PayPal is offered but has no checkout integration yet.
func payWithPayPal(context.Context, *Form, domain.OrderDraft, payment.CardDetails) (*settlement, error) {
	return nil, fmt.Errorf("%w: %s", ErrPaymentMethodUnavailable, domain.PaymentMethodPayPal)
}
