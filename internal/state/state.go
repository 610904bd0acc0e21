package state

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// AppState is the shopper state the checkout reads and mutates.
type AppState interface {
	CartItems(ctx context.Context) ([]domain.CartItem, error)
	GuestItems(ctx context.Context) ([]domain.CartItem, error)
	IsLoggedIn() bool
	UserEmail() string
	AuthToken() string

	// AddOrder records a placed order and makes it the session's recentOrder.
	AddOrder(ctx context.Context, order domain.PlacedOrder) error
	ClearCart(ctx context.Context) error
}

// ActiveItems returns the authenticated cart when logged in and the guest cart otherwise.
func ActiveItems(ctx context.Context, st AppState) ([]domain.CartItem, error) {
	if st.IsLoggedIn() {
		return st.CartItems(ctx)
	}
	return st.GuestItems(ctx)
}

// Identity is the verified user behind an auth token.
type Identity struct {
	Token   string
	Subject string
	Email   string
}

type CartStore interface {
	GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error)
	ClearCart(ctx context.Context, ownerKey string) error
}

// OrderLog writes the owner's order log entry and the session's recentOrder atomically.
type OrderLog interface {
	RecordPlacedOrder(ctx context.Context, sessionID, ownerKey string, order domain.PlacedOrder) error
}

// Session is the AppState of one shopper session.
type Session struct {
	sessionID string
	identity  *Identity
	carts     CartStore
	orders    OrderLog
}

var _ AppState = (*Session)(nil)

// NewSession binds a session. identity is nil for guests.
func NewSession(sessionID string, identity *Identity, carts CartStore, orders OrderLog) *Session {
	return &Session{
		sessionID: sessionID,
		identity:  identity,
		carts:     carts,
		orders:    orders,
	}
}

func (s *Session) SessionID() string {
	return s.sessionID
}

// OwnerKey is the key of the active cart and order log.
func (s *Session) OwnerKey() string {
	if s.IsLoggedIn() {
		return domain.UserCartKey(s.identity.Subject)
	}
	return domain.GuestCartKey(s.sessionID)
}

func (s *Session) IsLoggedIn() bool {
	return s.identity != nil && s.identity.Subject != ""
}

func (s *Session) UserEmail() string {
	if !s.IsLoggedIn() {
		return ""
	}
	return s.identity.Email
}

func (s *Session) AuthToken() string {
	if !s.IsLoggedIn() {
		return ""
	}
	return s.identity.Token
}

func (s *Session) CartItems(ctx context.Context) ([]domain.CartItem, error) {
	if !s.IsLoggedIn() {
		return []domain.CartItem{}, nil
	}
	return s.items(ctx, domain.UserCartKey(s.identity.Subject))
}

func (s *Session) GuestItems(ctx context.Context) ([]domain.CartItem, error) {
	return s.items(ctx, domain.GuestCartKey(s.sessionID))
}

func (s *Session) items(ctx context.Context, ownerKey string) ([]domain.CartItem, error) {
	cart, err := s.carts.GetCart(ctx, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", ownerKey, err)
	}
	if cart.Items == nil {
		return []domain.CartItem{}, nil
	}
	return cart.Items, nil
}

func (s *Session) AddOrder(ctx context.Context, order domain.PlacedOrder) error {
	if err := s.orders.RecordPlacedOrder(ctx, s.sessionID, s.OwnerKey(), order); err != nil {
		return fmt.Errorf("add order: %w", err)
	}
	return nil
}

// ClearCart empties the active collection only.
func (s *Session) ClearCart(ctx context.Context) error {
	if err := s.carts.ClearCart(ctx, s.OwnerKey()); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
