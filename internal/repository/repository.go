package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository stores authenticated and guest carts, keyed by owner key.
type CartRepository interface {
	GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error)
	AddItem(ctx context.Context, ownerKey string, item domain.CartItem) error
	RemoveItem(ctx context.Context, ownerKey string, productID int64) error
	DeleteCart(ctx context.Context, ownerKey string) error
}
