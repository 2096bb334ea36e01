package enums

import "fmt"

// PaymentMethod enumerates how an order can be paid.
type PaymentMethod string

const (
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodMobileMoney,
	PaymentMethodCreditCard,
	PaymentMethodCash,
	PaymentMethodBankTransfer,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresProvider reports whether settlement must reach out to the payment
// gateway before the order is considered paid.
func (p PaymentMethod) RequiresProvider() bool {
	return p == PaymentMethodMobileMoney
}

// PaidAtSettlement reports whether the order is marked paid at creation time.
func (p PaymentMethod) PaidAtSettlement() bool {
	return p == PaymentMethodCash
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
