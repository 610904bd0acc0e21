package checkout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/fjod/go_cart/storefront/internal/orderapi"
	"github.com/fjod/go_cart/storefront/internal/payment"
)

type fakeState struct {
	mu         sync.Mutex
	loggedIn   bool
	email      string
	token      string
	cart       []domain.CartItem
	guest      []domain.CartItem
	orders     []domain.PlacedOrder
	recent     []byte
	clearCalls int
	addErr     error
	clearErr   error
}

func (s *fakeState) CartItems(context.Context) ([]domain.CartItem, error)  { return s.cart, nil }
func (s *fakeState) GuestItems(context.Context) ([]domain.CartItem, error) { return s.guest, nil }
func (s *fakeState) IsLoggedIn() bool                                      { return s.loggedIn }
func (s *fakeState) AuthToken() string                                     { return s.token }

func (s *fakeState) UserEmail() string {
	if !s.loggedIn {
		return ""
	}
	return s.email
}

func (s *fakeState) AddOrder(_ context.Context, order domain.PlacedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	b, err := json.Marshal(order)
	if err != nil {
		return err
	}
	s.orders = append(s.orders, order)
	s.recent = b
	return nil
}

func (s *fakeState) ClearCart(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	if s.clearErr != nil {
		return s.clearErr
	}
	if s.loggedIn {
		s.cart = nil
	} else {
		s.guest = nil
	}
	return nil
}

type fakeOrders struct {
	mu     sync.Mutex
	drafts []domain.OrderDraft
	tokens []string
	resp   *orderapi.CreateOrderResponse
	err    error
	hook   func()
}

func (o *fakeOrders) CreateOrder(_ context.Context, draft domain.OrderDraft, bearer string) (*orderapi.CreateOrderResponse, error) {
	if o.hook != nil {
		o.hook()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drafts = append(o.drafts, draft)
	o.tokens = append(o.tokens, bearer)
	if o.err != nil {
		return nil, o.err
	}
	return o.resp, nil
}

type fakePayments struct {
	secrets   []string
	cards     []payment.CardDetails
	res       *payment.Result
	err       error
	lookups   []string
	status    *payment.Result
	statusErr error
}

func (p *fakePayments) ConfirmCardPayment(_ context.Context, clientSecret string, card payment.CardDetails) (*payment.Result, error) {
	p.secrets = append(p.secrets, clientSecret)
	p.cards = append(p.cards, card)
	if p.err != nil {
		return nil, p.err
	}
	return p.res, nil
}

func (p *fakePayments) PaymentStatus(_ context.Context, paymentIntentID string) (*payment.Result, error) {
	p.lookups = append(p.lookups, paymentIntentID)
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	return p.status, nil
}

type fakeStorage struct {
	items map[string][]byte
}

func (s *fakeStorage) GetItem(_ context.Context, key string) ([]byte, error) {
	v, ok := s.items[key]
	if !ok {
		return nil, localstore.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStorage) SetItem(_ context.Context, key string, value []byte) error {
	if s.items == nil {
		s.items = map[string][]byte{}
	}
	s.items[key] = value
	return nil
}

func (s *fakeStorage) RemoveItem(_ context.Context, key string) error {
	delete(s.items, key)
	return nil
}

type fakeEvents struct {
	events []*localstore.OutboxEvent
}

func (e *fakeEvents) AddEvent(_ context.Context, event *localstore.OutboxEvent) error {
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) types() []string {
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.EventType)
	}
	return out
}
