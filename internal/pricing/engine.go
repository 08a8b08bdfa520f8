package pricing

import "math"

// Cents is a monetary value in integer minor units (centavos). All booking
// money arithmetic happens in this representation so repeated fractional
// multiplications never accumulate floating-point drift.
type Cents = int64

// ToCents converts an amount in standard currency units to minor units,
// rounding half away from zero.
func ToCents(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// FromCents converts minor units back to standard currency units. The result
// is exact to the cent.
func FromCents(c Cents) float64 {
	return float64(c) / 100
}

// PaymentMethod identifies how a booking is paid.
type PaymentMethod string

const (
	// MethodCash carries no surcharge.
	MethodCash PaymentMethod = "CASH"
	// MethodQRPH carries a fixed convenience fee.
	MethodQRPH PaymentMethod = "QRPH"
)

// PaymentType determines how much of the post-discount total is charged now.
type PaymentType string

const (
	// TypeFull charges the whole post-discount total.
	TypeFull PaymentType = "FULL"
	// TypeDownpayment charges exactly half of the post-discount total.
	TypeDownpayment PaymentType = "DOWNPAYMENT"
)

// convenienceFeeBps maps payment methods to their surcharge in basis points.
// Methods absent from the table carry no fee, so an unrecognised method
// degrades to plain full payment rather than an error.
var convenienceFeeBps = map[PaymentMethod]int64{
	MethodQRPH: 150,
}

// CalculateBookingTotal computes the final charge amount for a booking given
// the line-item subtotal (per-item sale discounts already applied), an
// order-level voucher discount, the payment method, and the payment type.
//
// All intermediate values are integer cents: the subtotal and voucher are
// rounded once on entry, the downpayment split and the convenience fee are
// each rounded once, and the result converts back to standard units at the
// end. The voucher never drives the total negative. The function is pure and
// total: it never errors, performs no I/O, and is safe for concurrent use.
func CalculateBookingTotal(subtotal, voucherDiscount float64, method PaymentMethod, paymentType PaymentType) float64 {
	amount := chargeableCents(subtotal, voucherDiscount, paymentType)
	return FromCents(amount + feeCents(amount, method))
}

// ChargeableAmount returns the post-voucher, post-split amount the convenience
// fee is charged on. It matches CalculateBookingTotal up to the fee step, so
// callers can surface the fee as a separate quote line.
func ChargeableAmount(subtotal, voucherDiscount float64, paymentType PaymentType) float64 {
	return FromCents(chargeableCents(subtotal, voucherDiscount, paymentType))
}

// ConvenienceFee returns the surcharge for the given method on an amount in
// standard units, rounded to the cent. Methods without a fee rule return zero.
func ConvenienceFee(amount float64, method PaymentMethod) float64 {
	return FromCents(feeCents(ToCents(amount), method))
}

func chargeableCents(subtotal, voucherDiscount float64, paymentType PaymentType) Cents {
	amount := ToCents(subtotal) - ToCents(voucherDiscount)
	if amount < 0 {
		amount = 0
	}
	if paymentType == TypeDownpayment {
		amount = Cents(math.Round(float64(amount) * 0.5))
	}
	return amount
}

func feeCents(amount Cents, method PaymentMethod) Cents {
	bps, ok := convenienceFeeBps[method]
	if !ok {
		return 0
	}
	return Cents(math.Round(float64(amount) * float64(bps) / 10000))
}
