package orders

import (
	"strings"

	"github.com/swaymx/sway-api/internal/address"
	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/validate"
)

type LineInput struct {
	ProductID int64 `json:"product_id" validate:"gte=1"`
	Quantity  int   `json:"quantity" validate:"gte=1,lte=10000"`
}

type PaymentInput struct {
	Method     string `json:"method"`
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_expiry"`
	CardCVV    string `json:"card_cvv"`
	CardName   string `json:"card_name"`
}

// OrderInput is the body of an order request. UserID defaults to the caller.
type OrderInput struct {
	UserID   int64        `json:"user_id"`
	Lines    []LineInput  `json:"line_items"`
	Shipping address.Info `json:"shipping_address"`
	Payment  PaymentInput `json:"payment"`
}

// The wrappers below give validator the field paths clients see,
// e.g. "shipping_address.postal_code" or "payment.card_number".
type shippingCheck struct {
	Shipping address.Info `json:"shipping_address"`
}

type cardFields struct {
	CardNumber string `json:"card_number" validate:"card16"`
	CardExpiry string `json:"card_expiry" validate:"mmyy"`
	CardCVV    string `json:"card_cvv" validate:"cvv"`
	CardName   string `json:"card_name" validate:"min=3,max=100"`
}

type cardCheck struct {
	Payment cardFields `json:"payment"`
}

type cartCheck struct {
	Lines []LineInput `json:"line_items" validate:"min=1,dive"`
}

// Validate checks the shipping address, then the payment, then the cart.
func (in OrderInput) Validate() error {
	if err := validate.Struct(shippingCheck{Shipping: in.Shipping}); err != nil {
		return err
	}
	if err := in.Payment.validate(); err != nil {
		return err
	}
	return validate.Struct(cartCheck{Lines: in.Lines})
}

func (p PaymentInput) validate() error {
	switch p.Method {
	case MethodPayPal:
		return nil
	case MethodCreditCard, MethodDebitCard:
		return validate.Struct(cardCheck{Payment: cardFields{
			CardNumber: p.CardNumber,
			CardExpiry: strings.TrimSpace(p.CardExpiry),
			CardCVV:    strings.TrimSpace(p.CardCVV),
			CardName:   validate.CollapseSpaces(p.CardName),
		}})
	case "":
		return apperr.Validation("payment.method", "payment.method is required")
	default:
		return apperr.Validation("payment.method", "payment.method must be one of: credit_card debit_card paypal")
	}
}
