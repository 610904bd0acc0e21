package checkout

import "errors"

var (
	ErrInvalidFields            = errors.New("invalid checkout fields")
	ErrEmptyCart                = errors.New("cart is empty")
	ErrSubmitInProgress         = errors.New("checkout already in progress")
	ErrOrderCreation            = errors.New("order creation failed")
	ErrPaymentConfirmation      = errors.New("payment confirmation failed")
	ErrPaymentDeclined          = errors.New("payment declined")
	ErrPaymentMethodUnavailable = errors.New("payment method unavailable")
	ErrCommit                   = errors.New("failed to record placed order")
	ErrNoPendingPayment         = errors.New("no payment awaiting authentication")
)
