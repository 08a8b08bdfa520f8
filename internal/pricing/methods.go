package pricing

import (
	"fmt"
	"strings"
)

// ParsePaymentMethod validates a raw payment method string at the API
// boundary. The engine itself is total over any method value; this keeps
// unrecognised strings from reaching it through the HTTP surface.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw))); m {
	case MethodCash, MethodQRPH:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", raw)
	}
}

// ParsePaymentType validates a raw payment type string at the API boundary.
func ParsePaymentType(raw string) (PaymentType, error) {
	switch t := PaymentType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TypeFull, TypeDownpayment:
		return t, nil
	default:
		return "", fmt.Errorf("unknown payment type %q", raw)
	}
}
