package orders

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/validate"
)

const (
	MethodCreditCard = "credit_card"
	MethodDebitCard  = "debit_card"
	MethodPayPal     = "paypal"
)

// Values stored for PayPal in place of card data.
const (
	payPalNumber = "PAYPAL_TRANS"
	payPalExpiry = "N/A"
	payPalHolder = "PayPal User"
)

// CardType picks the card network from the leading digit.
func CardType(number string) int64 {
	number = validate.StripSpaces(number)
	if number == "" {
		return store.CardDebit
	}
	switch number[0] {
	case '4':
		return store.CardVisa
	case '5', '2':
		return store.CardMastercard
	case '3':
		return store.CardAmex
	default:
		return store.CardDebit
	}
}

// MaskCard keeps only the last four digits.
func MaskCard(number string) string {
	number = validate.StripSpaces(number)
	if len(number) < 4 {
		return strings.Repeat("*", len(number))
	}
	return "**** **** **** " + number[len(number)-4:]
}

// paymentRecord builds the row to persist. The CVV is never part of it.
func paymentRecord(orderID int64, in PaymentInput, amount decimal.Decimal) store.Payment {
	if in.Method == MethodPayPal {
		return store.Payment{
			OrderID:      orderID,
			Method:       MethodPayPal,
			CardTypeID:   store.CardPayPal,
			MaskedNumber: payPalNumber,
			HolderName:   payPalHolder,
			Expiry:       payPalExpiry,
			Amount:       amount,
		}
	}
	return store.Payment{
		OrderID:      orderID,
		Method:       in.Method,
		CardTypeID:   CardType(in.CardNumber),
		MaskedNumber: MaskCard(in.CardNumber),
		HolderName:   validate.CollapseSpaces(in.CardName),
		Expiry:       strings.TrimSpace(in.CardExpiry),
		Amount:       amount,
	}
}
