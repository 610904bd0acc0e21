package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRef is the catalog product an authenticated cart line points to.
type ProductRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CartItem is one line of either an authenticated cart or a guest cart.
// Authenticated lines carry Product, guest lines carry the inline Name.
type CartItem struct {
	ID        string          `json:"id"`
	ProductID int64           `json:"product_id"`
	Product   *ProductRef     `json:"product,omitempty"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
	AddedAt   time.Time       `json:"added_at"`
}

type Cart struct {
	OwnerKey  string     `json:"owner_key"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (i CartItem) DisplayName(loggedIn bool) string {
	if loggedIn && i.Product != nil {
		return i.Product.Name
	}
	return i.Name
}

// CatalogID prefers the product reference and falls back to the flat product id guest lines carry.
func (i CartItem) CatalogID() int64 {
	if i.Product != nil && i.Product.ID != 0 {
		return i.Product.ID
	}
	return i.ProductID
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func UserCartKey(subject string) string {
	return "user:" + subject
}

func GuestCartKey(sessionID string) string {
	return "guest:" + sessionID
}
