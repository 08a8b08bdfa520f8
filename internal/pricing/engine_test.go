package pricing

import "testing"

func TestCashFullIsIdentity(t *testing.T) {
	for _, subtotal := range []float64{0, 1, 19.99, 100, 1234.56, 99999.99} {
		got := CalculateBookingTotal(subtotal, 0, MethodCash, TypeFull)
		if got != subtotal {
			t.Fatalf("expected %v, got %v", subtotal, got)
		}
	}
}

func TestDownpaymentIsHalf(t *testing.T) {
	got := CalculateBookingTotal(100, 0, MethodCash, TypeDownpayment)
	if got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}

func TestDownpaymentRoundsHalfUp(t *testing.T) {
	// 99.99 -> 9999 cents, half is 4999.5, rounds away from zero to 5000.
	got := CalculateBookingTotal(99.99, 0, MethodCash, TypeDownpayment)
	if got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}

func TestQRPHFee(t *testing.T) {
	got := CalculateBookingTotal(100, 0, MethodQRPH, TypeFull)
	if got != 101.5 {
		t.Fatalf("expected 101.5, got %v", got)
	}
}

func TestQRPHFeeRoundsToCent(t *testing.T) {
	// fee on 1999 cents is 29.985 cents, rounded to 30.
	got := CalculateBookingTotal(19.99, 0, MethodQRPH, TypeFull)
	if got != 20.29 {
		t.Fatalf("expected 20.29, got %v", got)
	}
}

func TestVoucherClampsToZero(t *testing.T) {
	got := CalculateBookingTotal(50, 100, MethodCash, TypeFull)
	if got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestVoucherAppliedBeforeFee(t *testing.T) {
	got := CalculateBookingTotal(100, 20, MethodQRPH, TypeFull)
	if got != 81.2 {
		t.Fatalf("expected 81.2, got %v", got)
	}
}

func TestDownpaymentThenFee(t *testing.T) {
	// 100 -> downpayment 50 -> fee 0.75 -> 50.75
	got := CalculateBookingTotal(100, 0, MethodQRPH, TypeDownpayment)
	if got != 50.75 {
		t.Fatalf("expected 50.75, got %v", got)
	}
}

func TestFeeBreakdownMatchesTotal(t *testing.T) {
	// 100 - 20 voucher -> downpayment 40 -> fee 0.60 -> total 40.60
	base := ChargeableAmount(100, 20, TypeDownpayment)
	if base != 40 {
		t.Fatalf("expected base 40, got %v", base)
	}
	fee := ConvenienceFee(base, MethodQRPH)
	if fee != 0.6 {
		t.Fatalf("expected fee 0.6, got %v", fee)
	}
	total := CalculateBookingTotal(100, 20, MethodQRPH, TypeDownpayment)
	if total != 40.6 {
		t.Fatalf("expected total 40.6, got %v", total)
	}
}

func TestConvenienceFeeZeroForCash(t *testing.T) {
	if fee := ConvenienceFee(100, MethodCash); fee != 0 {
		t.Fatalf("expected no fee, got %v", fee)
	}
}

func TestUnknownMethodAddsNoFee(t *testing.T) {
	got := CalculateBookingTotal(100, 0, PaymentMethod("GCASH"), TypeFull)
	if got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
}

func TestResultNeverNegativeAndCentExact(t *testing.T) {
	cases := []struct {
		subtotal, voucher float64
		method            PaymentMethod
		paymentType       PaymentType
	}{
		{0, 0, MethodCash, TypeFull},
		{0.01, 0.02, MethodQRPH, TypeFull},
		{19.99, 0.005, MethodQRPH, TypeDownpayment},
		{123.45, 23.45, MethodQRPH, TypeDownpayment},
	}
	for _, tc := range cases {
		got := CalculateBookingTotal(tc.subtotal, tc.voucher, tc.method, tc.paymentType)
		if got < 0 {
			t.Fatalf("negative total %v for %+v", got, tc)
		}
		if FromCents(ToCents(got)) != got {
			t.Fatalf("total %v is not cent-exact for %+v", got, tc)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" qrph ")
	if err != nil || m != MethodQRPH {
		t.Fatalf("expected QRPH, got %v (%v)", m, err)
	}
	if _, err := ParsePaymentMethod("wire"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestParsePaymentType(t *testing.T) {
	p, err := ParsePaymentType("downpayment")
	if err != nil || p != TypeDownpayment {
		t.Fatalf("expected DOWNPAYMENT, got %v (%v)", p, err)
	}
	if _, err := ParsePaymentType(""); err == nil {
		t.Fatal("expected error for empty type")
	}
}
