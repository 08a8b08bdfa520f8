package sale

import (
	"testing"

	"github.com/google/uuid"
)

func TestNoMatchingScopeReturnsNil(t *testing.T) {
	serviceID := uuid.New()
	events := []Event{
		{Title: "Other service promo", Kind: KindPercentage, Value: 50, Scope: ServiceScope{ServiceIDs: []uuid.UUID{uuid.New()}}},
		{Title: "Package promo", Kind: KindFixedAmount, Value: 10, Scope: PackageScope{PackageIDs: []uuid.UUID{uuid.New()}}},
	}
	if got := ApplicableDiscount(serviceID, nil, 100, events); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestLargestAbsoluteDiscountWins(t *testing.T) {
	serviceID := uuid.New()
	events := []Event{
		{Title: "Ten percent", Kind: KindPercentage, Value: 10, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
		{Title: "Fifteen off", Kind: KindFixedAmount, Value: 15, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
	}
	got := ApplicableDiscount(serviceID, nil, 100, events)
	if got == nil {
		t.Fatal("expected a discount")
	}
	if got.Reason != "Fifteen off" || got.Amount != 15 || got.FinalPrice != 85 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestTieKeepsFirstEvent(t *testing.T) {
	serviceID := uuid.New()
	events := []Event{
		{Title: "First", Kind: KindFixedAmount, Value: 20, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
		{Title: "Second", Kind: KindPercentage, Value: 20, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
	}
	got := ApplicableDiscount(serviceID, nil, 100, events)
	if got == nil || got.Reason != "First" {
		t.Fatalf("expected the first event to win the tie, got %+v", got)
	}
}

func TestDiscountClampsToPrice(t *testing.T) {
	serviceID := uuid.New()
	events := []Event{
		{Title: "Huge promo", Kind: KindFixedAmount, Value: 500, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
	}
	got := ApplicableDiscount(serviceID, nil, 100, events)
	if got == nil {
		t.Fatal("expected a discount")
	}
	if got.Amount != 100 || got.FinalPrice != 0 {
		t.Fatalf("expected clamp to price, got %+v", got)
	}
}

func TestPackageScopeUsedWhenPackagePresent(t *testing.T) {
	serviceID := uuid.New()
	packageID := uuid.New()
	events := []Event{
		{Title: "Service promo", Kind: KindFixedAmount, Value: 50, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
		{Title: "Package promo", Kind: KindFixedAmount, Value: 25, Scope: PackageScope{PackageIDs: []uuid.UUID{packageID}}},
	}
	got := ApplicableDiscount(serviceID, &packageID, 200, events)
	if got == nil || got.Reason != "Package promo" {
		t.Fatalf("expected package scope to apply, got %+v", got)
	}
	if got.FinalPrice != 175 {
		t.Fatalf("expected final price 175, got %v", got.FinalPrice)
	}
}

func TestZeroValueEventReturnsNil(t *testing.T) {
	serviceID := uuid.New()
	events := []Event{
		{Title: "Empty promo", Kind: KindFixedAmount, Value: 0, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
	}
	if got := ApplicableDiscount(serviceID, nil, 100, events); got != nil {
		t.Fatalf("expected nil for zero-value event, got %+v", got)
	}
}

func TestNegativeValueEventReturnsNil(t *testing.T) {
	serviceID := uuid.New()
	events := []Event{
		{Title: "Broken promo", Kind: KindFixedAmount, Value: -10, Scope: ServiceScope{ServiceIDs: []uuid.UUID{serviceID}}},
	}
	if got := ApplicableDiscount(serviceID, nil, 100, events); got != nil {
		t.Fatalf("expected nil for negative-value event, got %+v", got)
	}
}
