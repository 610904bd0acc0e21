package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orderapi"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placedOrderJSON = `{"id":42,"name":"Sara","total_price":"20.00","status":"pending"}`

type harness struct {
	state    *fakeState
	orders   *fakeOrders
	payments *fakePayments
	storage  *fakeStorage
	events   *fakeEvents
	form     *Form
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	var order domain.PlacedOrder
	require.NoError(t, json.Unmarshal([]byte(placedOrderJSON), &order))

	items := []domain.CartItem{
		{ProductID: 1, Product: &domain.ProductRef{ID: 1, Name: "Argan oil"}, Price: decimal.RequireFromString("10"), Quantity: 1, Image: "argan.png"},
		{ProductID: 2, Product: &domain.ProductRef{ID: 2, Name: "Mint tea"}, Price: decimal.RequireFromString("5"), Quantity: 2, Image: "tea.png"},
	}
	h := &harness{
		state: &fakeState{loggedIn: true, email: "sara@example.ma", token: "tok", cart: items},
		orders: &fakeOrders{resp: &orderapi.CreateOrderResponse{
			PaymentIntent: &orderapi.PaymentIntent{ClientSecret: "pi_1_secret_2"},
			Order:         &order,
		}},
		payments: &fakePayments{res: &payment.Result{PaymentIntentID: "pi_1", Status: "succeeded"}},
		storage:  &fakeStorage{},
		events:   &fakeEvents{},
	}
	h.form = NewForm(h.state, items, domain.Total(items), Deps{
		Orders:   h.orders,
		Payments: h.payments,
		Storage:  h.storage,
		Events:   h.events,
	})
	return h
}

func validFields() Fields {
	return Fields{
		Name:    "Sara",
		Phone:   "0600000000",
		Address: "Rue 1, Rabat",
		Card:    payment.CardDetails{PaymentMethodID: "pm_card_visa"},
	}
}

func TestSelectPaymentMethod(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, domain.PaymentMethodCreditCard, h.form.PaymentMethod())

	for _, m := range domain.PaymentMethods() {
		require.NoError(t, h.form.SelectPaymentMethod(m))
		assert.Equal(t, m, h.form.PaymentMethod())
	}

	err := h.form.SelectPaymentMethod("bitcoin")
	assert.ErrorIs(t, err, domain.ErrUnknownPaymentMethod)
	assert.Equal(t, domain.PaymentMethodCashOnDelivery, h.form.PaymentMethod())
}

func TestEmailFollowsLoginState(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "sara@example.ma", h.form.Email())

	h.state.loggedIn = false
	assert.Empty(t, h.form.Email())
}

func TestSubmit_CreditCardSuccess(t *testing.T) {
	h := newHarness(t)

	receipt, err := h.form.Submit(context.Background(), validFields())

	require.NoError(t, err)
	require.Len(t, h.orders.drafts, 1)
	draft := h.orders.drafts[0]
	assert.Equal(t, "20.00", draft.TotalPrice)
	assert.Equal(t, "sara@example.ma", draft.Email)
	assert.Equal(t, domain.PaymentMethodCreditCard, draft.PaymentMethod)
	assert.Equal(t, []domain.OrderLine{
		{ProductID: 1, Quantity: 1, Price: "10.00", Image: "argan.png"},
		{ProductID: 2, Quantity: 2, Price: "5.00", Image: "tea.png"},
	}, draft.Items)
	assert.Equal(t, []string{"tok"}, h.orders.tokens)

	assert.Equal(t, []string{"pi_1_secret_2"}, h.payments.secrets)
	assert.Equal(t, "pm_card_visa", h.payments.cards[0].PaymentMethodID)

	require.Len(t, h.state.orders, 1)
	assert.Equal(t, domain.OrderID("42"), h.state.orders[0].ID)
	assert.Equal(t, 1, h.state.clearCalls)
	assert.JSONEq(t, placedOrderJSON, string(h.state.recent))

	assert.Equal(t, "/thank-you/order/42", receipt.Redirect)
	assert.Equal(t, domain.OrderID("42"), receipt.Order.ID)
	assert.False(t, h.form.Loading())
	assert.Equal(t, []string{EventOrderPlaced}, h.events.types())
}

func TestSubmit_ConfirmationErrorLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.payments.res = &payment.Result{
		PaymentIntentID: "pi_1",
		Err:             &payment.ProviderError{Type: "card_error", Code: "card_declined", Message: "Your card was declined."},
	}

	receipt, err := h.form.Submit(context.Background(), validFields())

	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	var providerErr *payment.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "card_declined", providerErr.Code)
	assert.True(t, IsPaymentError(err))

	assert.Empty(t, h.state.orders)
	assert.Zero(t, h.state.clearCalls)
	assert.Empty(t, h.state.recent)
	assert.False(t, h.form.Loading())

	require.Equal(t, []string{EventPaymentFailed}, h.events.types())
	assert.Equal(t, "42", h.events.events[0].AggregateID)
	var payload PaymentFailedEvent
	require.NoError(t, json.Unmarshal(h.events.events[0].Payload, &payload))
	assert.Equal(t, "card_declined", payload.Code)
	assert.Equal(t, "pi_1", payload.PaymentIntentID)
}

func TestSubmit_ConfirmationTransportError(t *testing.T) {
	h := newHarness(t)
	h.payments.err = errors.New("connection reset")

	_, err := h.form.Submit(context.Background(), validFields())

	assert.ErrorIs(t, err, ErrPaymentConfirmation)
	assert.False(t, IsPaymentError(err))
	assert.Empty(t, h.state.orders)
	assert.Zero(t, h.state.clearCalls)
	assert.False(t, h.form.Loading())
}

func TestSubmit_OrderCreationFailure(t *testing.T) {
	h := newHarness(t)
	h.orders.err = &orderapi.APIError{StatusCode: 500, Body: "boom"}

	_, err := h.form.Submit(context.Background(), validFields())

	assert.ErrorIs(t, err, ErrOrderCreation)
	var apiErr *orderapi.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Empty(t, h.payments.secrets)
	assert.Empty(t, h.state.orders)
	assert.Zero(t, h.state.clearCalls)
	assert.Empty(t, h.state.recent)
	assert.Empty(t, h.events.events)
	assert.False(t, h.form.Loading())
}

func TestSubmit_MissingClientSecret(t *testing.T) {
	h := newHarness(t)
	h.orders.resp.PaymentIntent = nil

	_, err := h.form.Submit(context.Background(), validFields())

	assert.ErrorIs(t, err, ErrOrderCreation)
	assert.ErrorIs(t, err, orderapi.ErrMissingClientSecret)
	assert.Empty(t, h.payments.secrets)
	assert.Empty(t, h.state.orders)
}

func TestSubmit_LoadingWhileInFlight(t *testing.T) {
	h := newHarness(t)
	var during bool
	h.orders.hook = func() { during = h.form.Loading() }

	_, err := h.form.Submit(context.Background(), validFields())

	require.NoError(t, err)
	assert.True(t, during)
	assert.False(t, h.form.Loading())
}

func TestSubmit_RejectsConcurrentSubmit(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.orders.hook = func() {
		close(entered)
		<-release
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := h.form.Submit(context.Background(), validFields())
		assert.NoError(t, err)
	}()
	<-entered

	h.orders.hook = nil
	_, err := h.form.Submit(context.Background(), validFields())
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(release)
	wg.Wait()
	assert.Len(t, h.orders.drafts, 1)
}

func TestSubmit_CashOnDeliverySkipsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.orders.resp.PaymentIntent = nil
	require.NoError(t, h.form.SelectPaymentMethod(domain.PaymentMethodCashOnDelivery))

	receipt, err := h.form.Submit(context.Background(), Fields{Name: "Sara", Phone: "06", Address: "Rabat"})

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodCashOnDelivery, h.orders.drafts[0].PaymentMethod)
	assert.Empty(t, h.payments.secrets)
	assert.Len(t, h.state.orders, 1)
	assert.Equal(t, 1, h.state.clearCalls)
	assert.Equal(t, "/thank-you/order/42", receipt.Redirect)
}

func TestSubmit_PayPalUnavailable(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.form.SelectPaymentMethod(domain.PaymentMethodPayPal))

	_, err := h.form.Submit(context.Background(), validFields())

	assert.ErrorIs(t, err, ErrPaymentMethodUnavailable)
	assert.True(t, IsPaymentError(err))
	assert.Empty(t, h.orders.drafts)
	assert.Empty(t, h.state.orders)
	assert.False(t, h.form.Loading())
}

func TestSubmit_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
	}{
		{"missing name", Fields{Phone: "06", Address: "Rabat"}},
		{"missing phone", Fields{Name: "Sara", Address: "Rabat"}},
		{"missing address", Fields{Name: "Sara", Phone: "06"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.form.Submit(context.Background(), tt.fields)

			assert.ErrorIs(t, err, ErrInvalidFields)
			assert.True(t, IsInputError(err))
			assert.Empty(t, h.orders.drafts)
			assert.False(t, h.form.Loading())
		})
	}
}

func TestSubmit_EmptyCart(t *testing.T) {
	h := newHarness(t)
	h.form = NewForm(h.state, nil, decimal.Zero, h.form.deps)

	_, err := h.form.Submit(context.Background(), validFields())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, h.orders.drafts)
}

func TestSubmit_GuestDraftHasEmptyEmailAndNoToken(t *testing.T) {
	h := newHarness(t)
	h.state.loggedIn = false
	h.state.token = ""

	_, err := h.form.Submit(context.Background(), validFields())

	require.NoError(t, err)
	assert.Empty(t, h.orders.drafts[0].Email)
	assert.Equal(t, []string{""}, h.orders.tokens)
}

func TestSubmit_RecordFailureCommitsNothing(t *testing.T) {
	h := newHarness(t)
	h.state.addErr = errors.New("locked")

	receipt, err := h.form.Submit(context.Background(), validFields())

	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, ErrCommit)
	assert.Len(t, h.payments.secrets, 1)
	assert.Empty(t, h.state.orders)
	assert.Empty(t, h.state.recent)
	assert.Zero(t, h.state.clearCalls)
	assert.Len(t, h.state.cart, 2)
	assert.Empty(t, h.events.events)
	assert.False(t, h.form.Loading())
}

func TestSubmit_CartClearFailureKeepsReceipt(t *testing.T) {
	h := newHarness(t)
	h.state.clearErr = errors.New("mongo unavailable")

	receipt, err := h.form.Submit(context.Background(), validFields())

	require.NoError(t, err)
	assert.Equal(t, "/thank-you/order/42", receipt.Redirect)
	require.Len(t, h.state.orders, 1)
	assert.JSONEq(t, placedOrderJSON, string(h.state.recent))
	assert.Equal(t, 1, h.state.clearCalls)
	assert.Equal(t, []string{EventOrderPlaced}, h.events.types())
}

func (h *harness) requireBankChallenge() {
	h.payments.res = &payment.Result{
		PaymentIntentID: "pi_1",
		Status:          "requires_action",
		RedirectURL:     "https://bank.test/3ds/pi_1",
	}
}

func TestSubmit_BankChallengeHoldsOrder(t *testing.T) {
	h := newHarness(t)
	h.requireBankChallenge()
	fields := validFields()
	fields.Card.ReturnURL = "https://shop.test/checkout/complete"

	receipt, err := h.form.Submit(context.Background(), fields)

	require.NoError(t, err)
	assert.True(t, receipt.AwaitingAuthentication)
	assert.Equal(t, "https://bank.test/3ds/pi_1", receipt.Redirect)
	assert.Equal(t, "https://shop.test/checkout/complete", h.payments.cards[0].ReturnURL)

	assert.Empty(t, h.state.orders)
	assert.Empty(t, h.state.recent)
	assert.Zero(t, h.state.clearCalls)
	assert.Empty(t, h.events.events)
	assert.Contains(t, h.storage.items, PendingPaymentKey)
	assert.False(t, h.form.Loading())
}

func TestCompleteAuthentication_Success(t *testing.T) {
	h := newHarness(t)
	h.requireBankChallenge()
	_, err := h.form.Submit(context.Background(), validFields())
	require.NoError(t, err)
	h.payments.status = &payment.Result{PaymentIntentID: "pi_1", Status: "succeeded"}

	receipt, err := h.form.CompleteAuthentication(context.Background(), "pi_1")

	require.NoError(t, err)
	assert.False(t, receipt.AwaitingAuthentication)
	assert.Equal(t, "/thank-you/order/42", receipt.Redirect)
	assert.Equal(t, []string{"pi_1"}, h.payments.lookups)
	require.Len(t, h.state.orders, 1)
	assert.JSONEq(t, placedOrderJSON, string(h.state.recent))
	assert.Equal(t, 1, h.state.clearCalls)
	assert.NotContains(t, h.storage.items, PendingPaymentKey)

	require.Equal(t, []string{EventOrderPlaced}, h.events.types())
	var placed OrderPlacedEvent
	require.NoError(t, json.Unmarshal(h.events.events[0].Payload, &placed))
	assert.Equal(t, "20.00", placed.TotalPrice)
	assert.Equal(t, 2, placed.Items)
}

func TestCompleteAuthentication_Failed(t *testing.T) {
	h := newHarness(t)
	h.requireBankChallenge()
	_, err := h.form.Submit(context.Background(), validFields())
	require.NoError(t, err)
	h.payments.status = &payment.Result{
		PaymentIntentID: "pi_1",
		Status:          "requires_payment_method",
		Err:             &payment.ProviderError{Type: "card_error", Code: "payment_intent_authentication_failure"},
	}

	receipt, err := h.form.CompleteAuthentication(context.Background(), "pi_1")

	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Empty(t, h.state.orders)
	assert.Zero(t, h.state.clearCalls)
	assert.NotContains(t, h.storage.items, PendingPaymentKey)
	assert.Equal(t, []string{EventPaymentFailed}, h.events.types())
}

func TestCompleteAuthentication_StatusUnavailableKeepsHeldPayment(t *testing.T) {
	h := newHarness(t)
	h.requireBankChallenge()
	_, err := h.form.Submit(context.Background(), validFields())
	require.NoError(t, err)
	h.payments.statusErr = errors.New("connection reset")

	_, err = h.form.CompleteAuthentication(context.Background(), "pi_1")

	assert.ErrorIs(t, err, ErrPaymentConfirmation)
	assert.Empty(t, h.state.orders)
	assert.Contains(t, h.storage.items, PendingPaymentKey)
}

func TestCompleteAuthentication_UnknownPayment(t *testing.T) {
	h := newHarness(t)

	_, err := h.form.CompleteAuthentication(context.Background(), "pi_1")
	assert.ErrorIs(t, err, ErrNoPendingPayment)

	h.requireBankChallenge()
	_, err = h.form.Submit(context.Background(), validFields())
	require.NoError(t, err)

	_, err = h.form.CompleteAuthentication(context.Background(), "pi_other")
	assert.ErrorIs(t, err, ErrNoPendingPayment)
	assert.Empty(t, h.payments.lookups)
	assert.Empty(t, h.state.orders)
}
