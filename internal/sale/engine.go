package sale

import (
	"github.com/google/uuid"
)

// Kind distinguishes percentage discounts from flat amounts.
type Kind string

const (
	// KindPercentage discounts value% of the item price.
	KindPercentage Kind = "PERCENTAGE"
	// KindFixedAmount discounts a flat currency amount.
	KindFixedAmount Kind = "FIXED_AMOUNT"
)

// Scope restricts which line items a sale event can discount. Exactly one
// concrete scope backs an event, so service and package applicability can
// never be mixed on a single event.
type Scope interface {
	// Matches reports whether the event applies to a line item identified by
	// its service and, when booked as part of a package, its package.
	Matches(serviceID uuid.UUID, packageID *uuid.UUID) bool
}

// ServiceScope applies an event to individual services booked on their own.
// Items booked through a package are never matched by a service scope.
type ServiceScope struct {
	ServiceIDs []uuid.UUID
}

// Matches implements Scope.
func (s ServiceScope) Matches(serviceID uuid.UUID, packageID *uuid.UUID) bool {
	if packageID != nil {
		return false
	}
	for _, id := range s.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// PackageScope applies an event to items booked as part of a package.
type PackageScope struct {
	PackageIDs []uuid.UUID
}

// Matches implements Scope.
func (s PackageScope) Matches(_ uuid.UUID, packageID *uuid.UUID) bool {
	if packageID == nil {
		return false
	}
	for _, id := range s.PackageIDs {
		if id == *packageID {
			return true
		}
	}
	return false
}

// Event is a promotional discount rule active over some caller-determined
// window. Callers pass only currently-active events; the engine performs no
// date checks of its own.
type Event struct {
	ID    uuid.UUID
	Title string
	Kind  Kind
	Value float64
	Scope Scope
}

func (e Event) discountAmount(price float64) float64 {
	if e.Kind == KindPercentage {
		return price * e.Value / 100
	}
	return e.Value
}

// Discount describes the outcome of selecting the best sale event for a line
// item.
type Discount struct {
	FinalPrice float64 `json:"finalPrice"`
	Amount     float64 `json:"discount"`
	Reason     string  `json:"reason"`
}

// ApplicableDiscount selects the sale event yielding the largest discount
// amount for the given line item. Percentage and fixed events compare on the
// resulting currency amount so they compete fairly; ties keep the earliest
// event in input order. The selected amount is clamped to the item price so a
// discount can never make the final price negative. A nil result means no
// discount applies, which is not an error.
func ApplicableDiscount(serviceID uuid.UUID, packageID *uuid.UUID, price float64, events []Event) *Discount {
	var (
		best       *Event
		bestAmount float64
	)
	for i := range events {
		if events[i].Scope == nil || !events[i].Scope.Matches(serviceID, packageID) {
			continue
		}
		amount := events[i].discountAmount(price)
		if best == nil || amount > bestAmount {
			best = &events[i]
			bestAmount = amount
		}
	}
	if best == nil {
		return nil
	}
	if bestAmount > price {
		bestAmount = price
	}
	if bestAmount <= 0 {
		return nil
	}
	return &Discount{
		FinalPrice: price - bestAmount,
		Amount:     bestAmount,
		Reason:     best.Title,
	}
}
