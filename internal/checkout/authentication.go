package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/fjod/go_cart/storefront/internal/logger"
)

// PendingPaymentKey holds a card payment waiting on bank authentication.
const PendingPaymentKey = "pendingPayment"

type pendingPayment struct {
	Order           domain.PlacedOrder `json:"order"`
	PaymentIntentID string             `json:"payment_intent_id"`
	Placed          OrderPlacedEvent   `json:"placed"`
}

// holdForAuthentication parks the created order until the shopper is back from
// the bank's challenge page. Nothing is committed to the shopper's state yet.
func (f *Form) holdForAuthentication(ctx context.Context, settled *settlement, placed OrderPlacedEvent) (*Receipt, error) {
	log := logger.FromContext(ctx).With().Str("order_id", settled.order.ID.String()).Logger()
	if f.deps.Storage == nil {
		log.Error().Msg("no storage to hold a payment awaiting authentication")
		return nil, fmt.Errorf("%w: order %s needs authentication", ErrPaymentConfirmation, settled.order.ID)
	}

	b, err := json.Marshal(pendingPayment{Order: *settled.order, PaymentIntentID: settled.intentID, Placed: placed})
	if err == nil {
		err = f.deps.Storage.SetItem(ctx, PendingPaymentKey, b)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to hold payment awaiting authentication")
		return nil, fmt.Errorf("%w: %w", ErrPaymentConfirmation, err)
	}

	log.Info().Str("payment_intent_id", settled.intentID).Msg("payment awaiting authentication")
	return &Receipt{Order: *settled.order, Redirect: settled.redirectURL, AwaitingAuthentication: true}, nil
}

// CompleteAuthentication finishes the held card payment once the shopper is
// back from their bank. paymentIntentID must match the held payment.
func (f *Form) CompleteAuthentication(ctx context.Context, paymentIntentID string) (*Receipt, error) {
	if !f.loading.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer f.loading.Store(false)

	pending, err := f.pendingPayment(ctx)
	if err != nil {
		return nil, err
	}
	if paymentIntentID == "" || pending.PaymentIntentID != paymentIntentID {
		return nil, fmt.Errorf("%w: %q", ErrNoPendingPayment, paymentIntentID)
	}
	log := logger.FromContext(ctx).With().Str("order_id", pending.Order.ID.String()).Logger()

	// the held payment stays until it is declined or committed, so a failed return can be retried
	res, err := f.deps.Payments.PaymentStatus(ctx, paymentIntentID)
	if err != nil {
		log.Error().Err(err).Msg("failed to read payment status")
		return nil, fmt.Errorf("%w: order %s: %w", ErrPaymentConfirmation, pending.Order.ID, err)
	}
	if res.Err != nil {
		f.dropPending(ctx)
		return nil, f.declined(ctx, &pending.Order, res)
	}

	receipt, err := f.finish(ctx, &pending.Order, pending.Placed)
	if err != nil {
		return nil, err
	}
	f.dropPending(ctx)
	return receipt, nil
}

func (f *Form) pendingPayment(ctx context.Context) (*pendingPayment, error) {
	if f.deps.Storage == nil {
		return nil, ErrNoPendingPayment
	}
	raw, err := f.deps.Storage.GetItem(ctx, PendingPaymentKey)
	if errors.Is(err, localstore.ErrKeyNotFound) {
		return nil, ErrNoPendingPayment
	}
	if err != nil {
		return nil, fmt.Errorf("read pending payment: %w", err)
	}

	var p pendingPayment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode pending payment: %w", err)
	}
	return &p, nil
}

func (f *Form) dropPending(ctx context.Context) {
	if err := f.deps.Storage.RemoveItem(ctx, PendingPaymentKey); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("failed to drop pending payment")
	}
}
