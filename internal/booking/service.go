package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/obs"
	"github.com/marshymcfloat/service-flow/internal/pricing"
	"github.com/marshymcfloat/service-flow/internal/sale"
	"github.com/marshymcfloat/service-flow/internal/schedule"
)

var (
	// ErrNotBookable rejects a submission whose slot cannot be honoured.
	ErrNotBookable = errors.New("booking: slot not bookable")
	// ErrOutsideHorizon rejects bookings beyond the published horizon.
	ErrOutsideHorizon = errors.New("booking: outside booking horizon")
)

// ServiceItem is the bookable catalog entry a booking references.
type ServiceItem struct {
	ID          uuid.UUID
	BusinessID  string
	Name        string
	Price       float64
	DurationMin int
	Capacity    int
}

// PackageItem bundles services under a single package price.
type PackageItem struct {
	ID         uuid.UUID
	BusinessID string
	Name       string
	Price      float64
}

// Booking is a confirmed reservation.
type Booking struct {
	ID              uuid.UUID             `json:"id"`
	BusinessID      string                `json:"businessId"`
	ServiceID       uuid.UUID             `json:"serviceId"`
	PackageID       *uuid.UUID            `json:"packageId,omitempty"`
	CustomerName    string                `json:"customerName"`
	StartsAt        time.Time             `json:"startsAt"`
	EndsAt          time.Time             `json:"endsAt"`
	Status          string                `json:"status"`
	Subtotal        float64               `json:"subtotal"`
	DiscountAmount  float64               `json:"discountAmount"`
	DiscountReason  string                `json:"discountReason,omitempty"`
	VoucherDiscount float64               `json:"voucherDiscount"`
	Total           float64               `json:"total"`
	PaymentMethod   pricing.PaymentMethod `json:"paymentMethod"`
	PaymentType     pricing.PaymentType   `json:"paymentType"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// Quote is a priced but unpersisted booking.
type Quote struct {
	ListPrice       float64               `json:"listPrice"`
	Discount        *sale.Discount        `json:"discount"`
	Subtotal        float64               `json:"subtotal"`
	VoucherDiscount float64               `json:"voucherDiscount"`
	ConvenienceFee  float64               `json:"convenienceFee"`
	Total           float64               `json:"total"`
	PaymentMethod   pricing.PaymentMethod `json:"paymentMethod"`
	PaymentType     pricing.PaymentType   `json:"paymentType"`
}

// Catalog loads bookable services and packages.
type Catalog interface {
	GetService(ctx context.Context, businessID string, id uuid.UUID) (ServiceItem, error)
	GetPackage(ctx context.Context, businessID string, id uuid.UUID) (PackageItem, error)
}

// Repo persists bookings.
type Repo interface {
	CreateBooking(ctx context.Context, b Booking) (Booking, error)
	GetBooking(ctx context.Context, businessID string, id uuid.UUID) (Booking, error)
	ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]Booking, error)
}

// Roster loads the schedule data needed to validate a slot.
type Roster interface {
	LoadWeekHours(ctx context.Context, businessID string) (schedule.WeekHours, error)
	LoadBookedSpans(ctx context.Context, businessID string, from, to time.Time) ([]schedule.Span, error)
}

// Discounter selects the best sale discount for a line item.
type Discounter interface {
	BestDiscount(ctx context.Context, businessID string, serviceID uuid.UUID, packageID *uuid.UUID, price float64) (*sale.Discount, error)
}

// Service prices quotes and accepts booking submissions.
type Service struct {
	Catalog     Catalog
	Repo        Repo
	Roster      Roster
	Discounts   Discounter
	Bus         *events.Bus
	HorizonDays int
	Now         func() time.Time
}

// QuoteInput identifies the line item and payment choice to price.
type QuoteInput struct {
	ServiceID       uuid.UUID
	PackageID       *uuid.UUID
	VoucherDiscount float64
	PaymentMethod   pricing.PaymentMethod
	PaymentType     pricing.PaymentType
}

// SubmitInput extends a quote with the requested slot and customer.
type SubmitInput struct {
	QuoteInput
	CustomerName string
	StartsAt     time.Time
}

// QuoteBooking prices a prospective booking without persisting anything.
func (s *Service) QuoteBooking(ctx context.Context, businessID string, in QuoteInput) (Quote, error) {
	quote, _, err := s.price(ctx, businessID, in)
	if err != nil {
		if obs.BookingQuotesTotal != nil {
			obs.BookingQuotesTotal.WithLabelValues("error").Inc()
		}
		return Quote{}, err
	}
	if obs.BookingQuotesTotal != nil {
		obs.BookingQuotesTotal.WithLabelValues("ok").Inc()
	}
	return quote, nil
}

// SubmitBooking validates the requested slot, prices the booking, and persists
// it. The slot must start in the future, fall inside the booking horizon, fit
// the day's opening hours, and leave capacity for the service.
func (s *Service) SubmitBooking(ctx context.Context, businessID string, in SubmitInput) (Booking, error) {
	now := s.now()
	quote, svc, err := s.price(ctx, businessID, in.QuoteInput)
	if err != nil {
		return Booking{}, err
	}

	start := in.StartsAt.In(schedule.Location())
	end := start.Add(time.Duration(svc.DurationMin) * time.Minute)
	if !start.After(now) {
		return Booking{}, fmt.Errorf("%w: start must be in the future", ErrNotBookable)
	}
	horizonStart, horizonEnd := schedule.Horizon(now, s.horizonDays())
	if start.Before(horizonStart) || !start.Before(horizonEnd) {
		return Booking{}, ErrOutsideHorizon
	}

	hours, err := s.Roster.LoadWeekHours(ctx, businessID)
	if err != nil {
		return Booking{}, err
	}
	day := hours.For(start)
	if !day.Contains(schedule.MinutesOf(start), schedule.MinutesOf(end)) {
		return Booking{}, fmt.Errorf("%w: outside opening hours", ErrNotBookable)
	}

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, schedule.Location())
	existing, err := s.Roster.LoadBookedSpans(ctx, businessID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return Booking{}, err
	}
	capacity := svc.Capacity
	if capacity <= 0 {
		capacity = 1
	}
	if schedule.PeakConcurrent(schedule.Span{Start: start, End: end}, existing) >= capacity {
		return Booking{}, fmt.Errorf("%w: no capacity left", ErrNotBookable)
	}

	booking := Booking{
		BusinessID:      businessID,
		ServiceID:       in.ServiceID,
		PackageID:       in.PackageID,
		CustomerName:    in.CustomerName,
		StartsAt:        start,
		EndsAt:          end,
		Status:          "confirmed",
		Subtotal:        quote.Subtotal,
		VoucherDiscount: quote.VoucherDiscount,
		Total:           quote.Total,
		PaymentMethod:   quote.PaymentMethod,
		PaymentType:     quote.PaymentType,
	}
	if quote.Discount != nil {
		booking.DiscountAmount = quote.Discount.Amount
		booking.DiscountReason = quote.Discount.Reason
	}
	created, err := s.Repo.CreateBooking(ctx, booking)
	if err != nil {
		return Booking{}, err
	}
	if obs.BookingsCreatedTotal != nil {
		obs.BookingsCreatedTotal.WithLabelValues(string(created.PaymentMethod), string(created.PaymentType)).Inc()
	}
	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicBookingCreated, businessID, created.ID, map[string]any{
			"serviceId": created.ServiceID,
			"startsAt":  created.StartsAt,
			"total":     created.Total,
		})
	}
	return created, nil
}

// AvailableSlots lists open start times for a service on the given date.
func (s *Service) AvailableSlots(ctx context.Context, businessID string, serviceID uuid.UUID, date time.Time, step time.Duration) ([]time.Time, error) {
	svc, err := s.Catalog.GetService(ctx, businessID, serviceID)
	if err != nil {
		return nil, err
	}
	hours, err := s.Roster.LoadWeekHours(ctx, businessID)
	if err != nil {
		return nil, err
	}
	local := date.In(schedule.Location())
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, schedule.Location())
	existing, err := s.Roster.LoadBookedSpans(ctx, businessID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	capacity := svc.Capacity
	if capacity <= 0 {
		capacity = 1
	}
	duration := time.Duration(svc.DurationMin) * time.Minute
	return schedule.AvailableSlots(date, hours.For(date), duration, step, capacity, existing), nil
}

func (s *Service) price(ctx context.Context, businessID string, in QuoteInput) (Quote, ServiceItem, error) {
	svc, err := s.Catalog.GetService(ctx, businessID, in.ServiceID)
	if err != nil {
		return Quote{}, ServiceItem{}, err
	}
	listPrice := svc.Price
	if in.PackageID != nil {
		pkg, err := s.Catalog.GetPackage(ctx, businessID, *in.PackageID)
		if err != nil {
			return Quote{}, ServiceItem{}, err
		}
		listPrice = pkg.Price
	}
	if in.VoucherDiscount < 0 {
		in.VoucherDiscount = 0
	}

	var discount *sale.Discount
	if s.Discounts != nil {
		discount, err = s.Discounts.BestDiscount(ctx, businessID, in.ServiceID, in.PackageID, listPrice)
		if err != nil {
			return Quote{}, ServiceItem{}, err
		}
	}
	subtotal := listPrice
	if discount != nil {
		subtotal = discount.FinalPrice
	}
	base := pricing.ChargeableAmount(subtotal, in.VoucherDiscount, in.PaymentType)
	return Quote{
		ListPrice:       listPrice,
		Discount:        discount,
		Subtotal:        subtotal,
		VoucherDiscount: in.VoucherDiscount,
		ConvenienceFee:  pricing.ConvenienceFee(base, in.PaymentMethod),
		Total:           pricing.CalculateBookingTotal(subtotal, in.VoucherDiscount, in.PaymentMethod, in.PaymentType),
		PaymentMethod:   in.PaymentMethod,
		PaymentType:     in.PaymentType,
	}, svc, nil
}

func (s *Service) horizonDays() int {
	if s.HorizonDays > 0 {
		return s.HorizonDays
	}
	return 30
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
