package domain

import (
	"encoding/json"
	"fmt"
)

type OrderLine struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Image     string `json:"image"`
}

// OrderDraft is the payload sent to the backend to create an order.
type OrderDraft struct {
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	TotalPrice    string        `json:"total_price"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []OrderLine   `json:"items"`
}

type BillingDetails struct {
	Name    string
	Phone   string
	Address string
}

func NewOrderDraft(billing BillingDetails, email string, method PaymentMethod, totalPrice string, items []CartItem) OrderDraft {
	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLine{
			ProductID: item.CatalogID(),
			Quantity:  item.Quantity,
			Price:     FormatAmount(item.Price),
			Image:     item.Image,
		})
	}
	return OrderDraft{
		Name:          billing.Name,
		Email:         email,
		Phone:         billing.Phone,
		Address:       billing.Address,
		TotalPrice:    totalPrice,
		PaymentMethod: method,
		Items:         lines,
	}
}

// OrderID is the backend's order identifier. The backend may send it as a JSON number or string.
type OrderID string

func (id *OrderID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid order id %s: %w", string(b), err)
	}
	*id = OrderID(n.String())
	return nil
}

func (id OrderID) String() string {
	return string(id)
}

// PlacedOrder is the order object returned by the backend. Raw keeps the exact
// document so it can be stored and handed back unchanged.
type PlacedOrder struct {
	ID            OrderID       `json:"id"`
	Name          string        `json:"name,omitempty"`
	Email         string        `json:"email,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	Address       string        `json:"address,omitempty"`
	TotalPrice    json.Number   `json:"total_price,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Status        string        `json:"status,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (o *PlacedOrder) UnmarshalJSON(data []byte) error {
	type plain PlacedOrder
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = PlacedOrder(p)
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (o PlacedOrder) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	type plain PlacedOrder
	return json.Marshal(plain(o))
}

// ConfirmationPath is where the shopper lands after a successful checkout.
func (o PlacedOrder) ConfirmationPath() string {
	return "/thank-you/order/" + string(o.ID)
}
