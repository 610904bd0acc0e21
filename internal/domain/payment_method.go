package domain

import (
	"errors"
	"fmt"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit-card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodCashOnDelivery PaymentMethod = "cash-on-delivery"
)

// DefaultPaymentMethod is selected when the checkout screen is first shown.
const DefaultPaymentMethod = PaymentMethodCreditCard

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// PaymentMethods returns every selectable method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCreditCard,
		PaymentMethodPayPal,
		PaymentMethodCashOnDelivery,
	}
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range PaymentMethods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, s)
}

func (m PaymentMethod) Valid() bool {
	_, err := ParsePaymentMethod(string(m))
	return err == nil
}

func (m PaymentMethod) Label() string {
	switch m {
	case PaymentMethodCreditCard:
		return "Credit Card"
	case PaymentMethodPayPal:
		return "PayPal"
	case PaymentMethodCashOnDelivery:
		return "Cash on Delivery"
	default:
		return "Unknown"
	}
}

// String representation (for logging)
func (m PaymentMethod) String() string {
	return string(m)
}
