package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/orderapi"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/state"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Storage is the shopper's local key/value storage. It holds a card payment
// while the shopper is away authenticating with their bank.
type Storage interface {
	GetItem(ctx context.Context, key string) ([]byte, error)
	SetItem(ctx context.Context, key string, value []byte) error
	RemoveItem(ctx context.Context, key string) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft, bearer string) (*orderapi.CreateOrderResponse, error)
}

type Deps struct {
	Orders   OrderCreator
	Payments payment.Confirmer
	Storage  Storage
	// Events is optional.
	Events EventRecorder
}

// Fields are the billing inputs the shopper typed in. Email is not among them:
// it always comes from the application state.
type Fields struct {
	Name    string `validate:"required,max=255"`
	Phone   string `validate:"required,max=32"`
	Address string `validate:"required,max=1024"`
	Card    payment.CardDetails
}

type submission struct {
	Fields
	Method domain.PaymentMethod `validate:"required,oneof=credit-card paypal cash-on-delivery"`
}

// Receipt is the outcome of a successful submission. When AwaitingAuthentication
// is set, Redirect points at the bank's challenge page and nothing is recorded yet.
type Receipt struct {
	Order                  domain.PlacedOrder
	Redirect               string
	AwaitingAuthentication bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Form is the billing form of the checkout screen.
type Form struct {
	state state.AppState
	deps  Deps
	items []domain.CartItem
	total decimal.Decimal

	mu      sync.RWMutex
	method  domain.PaymentMethod
	loading atomic.Bool
}

func NewForm(st state.AppState, items []domain.CartItem, total decimal.Decimal, deps Deps) *Form {
	return &Form{
		state:  st,
		deps:   deps,
		items:  items,
		total:  total,
		method: domain.DefaultPaymentMethod,
	}
}

// Email is read-only: the logged-in user's email, empty for guests.
func (f *Form) Email() string {
	return f.state.UserEmail()
}

func (f *Form) PaymentMethod() domain.PaymentMethod {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.method
}

func (f *Form) SelectPaymentMethod(m domain.PaymentMethod) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownPaymentMethod, string(m))
	}
	f.mu.Lock()
	f.method = m
	f.mu.Unlock()
	return nil
}

func (f *Form) Loading() bool {
	return f.loading.Load()
}

// Submit places the order with the active payment method. Shared state is
// only touched once the order is created and paid for. The in-progress guard
// covers this form only; concurrent requests each build their own form.
func (f *Form) Submit(ctx context.Context, fields Fields) (*Receipt, error) {
	if !f.loading.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer f.loading.Store(false)

	log := logger.FromContext(ctx)
	method := f.PaymentMethod()

	sub := submission{Fields: fields, Method: method}
	if err := validate.Struct(sub); err != nil {
		log.Error().Err(err).Msg("checkout fields rejected")
		return nil, fmt.Errorf("%w: %w", ErrInvalidFields, err)
	}
	if len(f.items) == 0 {
		return nil, ErrEmptyCart
	}

	draft := domain.NewOrderDraft(
		domain.BillingDetails{Name: fields.Name, Phone: fields.Phone, Address: fields.Address},
		f.Email(),
		method,
		domain.FormatAmount(f.total),
		f.items,
	)

	pay, ok := strategies[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaymentMethodUnavailable, method)
	}

	settled, err := pay(ctx, f, draft, fields.Card)
	if err != nil {
		log.Error().Err(err).Str("payment_method", method.String()).Msg("checkout failed")
		return nil, err
	}

	placed := OrderPlacedEvent{
		OrderID:       settled.order.ID,
		PaymentMethod: method,
		TotalPrice:    draft.TotalPrice,
		Items:         len(draft.Items),
	}
	if settled.redirectURL != "" {
		return f.holdForAuthentication(ctx, settled, placed)
	}
	return f.finish(ctx, settled.order, placed)
}

// finish commits a paid order and returns the receipt pointing at its confirmation page.
func (f *Form) finish(ctx context.Context, order *domain.PlacedOrder, placed OrderPlacedEvent) (*Receipt, error) {
	log := logger.FromContext(ctx)
	if err := f.commit(ctx, order); err != nil {
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("checkout commit failed")
		return nil, err
	}

	f.recordEvent(ctx, order.ID, EventOrderPlaced, placed)

	log.Info().Str("order_id", order.ID.String()).Str("payment_method", placed.PaymentMethod.String()).Msg("order placed")
	return &Receipt{Order: *order, Redirect: order.ConfirmationPath()}, nil
}

// commit records the order together with recentOrder, then empties the cart.
// Once the order is recorded the submission has succeeded: a cart that fails
// to clear is logged and left for the shopper to empty.
func (f *Form) commit(ctx context.Context, order *domain.PlacedOrder) error {
	if err := f.state.AddOrder(ctx, *order); err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	if err := f.state.ClearCart(ctx); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("order_id", order.ID.String()).Msg("cart not cleared after order placed")
	}
	return nil
}

// declined logs a payment the provider refused and records it for reconciliation.
func (f *Form) declined(ctx context.Context, order *domain.PlacedOrder, res *payment.Result) error {
	logger.FromContext(ctx).Error().
		Str("order_id", order.ID.String()).
		Str("code", res.Err.Code).
		Str("decline_code", res.Err.DeclineCode).
		Msg(res.Err.Message)
	f.recordEvent(ctx, order.ID, EventPaymentFailed, paymentFailed(order, res))
	return fmt.Errorf("%w: %w", ErrPaymentDeclined, res.Err)
}

func (f *Form) recordEvent(ctx context.Context, orderID domain.OrderID, eventType string, payload any) {
	if f.deps.Events == nil {
		return
	}
	ev, err := newEvent(orderID, eventType, payload)
	if err == nil {
		err = f.deps.Events.AddEvent(ctx, ev)
	}
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("event_type", eventType).Msg("failed to record checkout event")
	}
}

// IsPaymentError reports whether err is about the payment itself rather than the backend.
func IsPaymentError(err error) bool {
	return errors.Is(err, ErrPaymentDeclined) || errors.Is(err, ErrPaymentMethodUnavailable)
}

// IsInputError reports whether err was caused by the submitted fields.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidFields) || errors.Is(err, ErrEmptyCart) || errors.Is(err, domain.ErrUnknownPaymentMethod)
}
