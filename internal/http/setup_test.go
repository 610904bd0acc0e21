package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/fjod/go_cart/storefront/internal/orderapi"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "test-secret"
	testSession = "6f1c1f4e-8d5e-4c36-9c36-3f8a2d1b7a10"
)

type memCarts struct {
	mu    sync.Mutex
	carts map[string][]domain.CartItem
	err   error
}

func newMemCarts() *memCarts {
	return &memCarts{carts: map[string][]domain.CartItem{}}
}

func (m *memCarts) GetCart(_ context.Context, ownerKey string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Cart{OwnerKey: ownerKey, Items: append([]domain.CartItem(nil), m.carts[ownerKey]...)}, nil
}

func (m *memCarts) AddItem(_ context.Context, ownerKey string, item domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[ownerKey] = append(m.carts[ownerKey], item)
	return nil
}

func (m *memCarts) RemoveItem(_ context.Context, ownerKey string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.carts[ownerKey]
	for i, item := range items {
		if item.ProductID == productID {
			m.carts[ownerKey] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *memCarts) ClearCart(_ context.Context, ownerKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, ownerKey)
	return nil
}

func (m *memCarts) items(ownerKey string) []domain.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[ownerKey]
}

type stubOrders struct {
	mu     sync.Mutex
	drafts []domain.OrderDraft
	err    error
	// entered is closed when a call arrives; the call then waits on release.
	entered chan struct{}
	release chan struct{}
}

func (s *stubOrders) CreateOrder(_ context.Context, draft domain.OrderDraft, _ string) (*orderapi.CreateOrderResponse, error) {
	if s.entered != nil {
		close(s.entered)
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = append(s.drafts, draft)
	if s.err != nil {
		return nil, s.err
	}
	var order domain.PlacedOrder
	if err := json.Unmarshal([]byte(`{"id":42,"total_price":"`+draft.TotalPrice+`","payment_method":"`+string(draft.PaymentMethod)+`","status":"pending"}`), &order); err != nil {
		return nil, err
	}
	return &orderapi.CreateOrderResponse{
		PaymentIntent: &orderapi.PaymentIntent{ClientSecret: "pi_1_secret_2"},
		Order:         &order,
	}, nil
}

type stubPayments struct {
	mu          sync.Mutex
	providerErr *payment.ProviderError
	redirectURL string
	statusErr   *payment.ProviderError
	cards       []payment.CardDetails
}

func (s *stubPayments) ConfirmCardPayment(_ context.Context, _ string, card payment.CardDetails) (*payment.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = append(s.cards, card)
	if s.redirectURL != "" {
		return &payment.Result{PaymentIntentID: "pi_1", Status: "requires_action", RedirectURL: s.redirectURL}, nil
	}
	return &payment.Result{PaymentIntentID: "pi_1", Status: "succeeded", Err: s.providerErr}, nil
}

func (s *stubPayments) PaymentStatus(_ context.Context, paymentIntentID string) (*payment.Result, error) {
	if s.statusErr != nil {
		return &payment.Result{PaymentIntentID: paymentIntentID, Status: "requires_payment_method", Err: s.statusErr}, nil
	}
	return &payment.Result{PaymentIntentID: paymentIntentID, Status: "succeeded"}, nil
}

type testServer struct {
	handler  http.Handler
	store    *localstore.Store
	carts    *memCarts
	orders   *stubOrders
	payments *stubPayments
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := localstore.NewStore(localstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())
	t.Cleanup(func() { store.Close() })

	ts := &testServer{
		store:    store,
		carts:    newMemCarts(),
		orders:   &stubOrders{},
		payments: &stubPayments{},
	}
	screen := checkout.ScreenConfig{APIURL: "http://api.test", PublishableKey: "pk_test_123", Currency: "MAD"}

	ts.handler = NewRouter(Handlers{
		Checkout: NewCheckoutHandler(NewRenderer(false), store, ts.carts, ts.orders, ts.payments, screen, "http://shop.test/", 5*time.Second),
		Cart:     NewCartHandler(ts.carts, 5*time.Second),
		Orders:   NewOrdersHandler(store, 5*time.Second),
	}, RouterOptions{
		Logger:         zerolog.New(io.Discard),
		JWTSecret:      []byte(testSecret),
		RequestTimeout: 5 * time.Second,
		SubmitLimiter:  NewSubmitLimiter(100, 100),
	})
	return ts
}

func (ts *testServer) seedGuestCart() {
	ts.carts.carts[domain.GuestCartKey(testSession)] = []domain.CartItem{
		{ProductID: 1, Name: "Argan oil", Price: decimal.RequireFromString("10"), Quantity: 1, Image: "argan.png"},
		{ProductID: 2, Name: "Mint tea", Price: decimal.RequireFromString("5"), Quantity: 2, Image: "tea.png"},
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: testSession})
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func checkoutForm(method string) url.Values {
	return url.Values{
		"name":              {"Sara"},
		"email":             {"forged@example.ma"},
		"phone":             {"0600000000"},
		"address":           {"Rue 1, Rabat"},
		"payment_method":    {method},
		"payment_method_id": {"pm_card_visa"},
	}
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func signToken(t *testing.T, subject, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}
