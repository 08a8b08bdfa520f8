package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepo backs the booking service with postgres. It implements both Catalog
// and Repo.
type PGRepo struct {
	Pool *pgxpool.Pool
}

const getServiceSQL = `
SELECT id, business_id, name, price, duration_min, capacity
FROM services
WHERE business_id = $1 AND id = $2`

// GetService loads one bookable service.
func (r *PGRepo) GetService(ctx context.Context, businessID string, id uuid.UUID) (ServiceItem, error) {
	var item ServiceItem
	err := r.Pool.QueryRow(ctx, getServiceSQL, businessID, id).Scan(
		&item.ID, &item.BusinessID, &item.Name, &item.Price, &item.DurationMin, &item.Capacity,
	)
	return item, err
}

const getPackageSQL = `
SELECT id, business_id, name, price
FROM packages
WHERE business_id = $1 AND id = $2`

// GetPackage loads one service package.
func (r *PGRepo) GetPackage(ctx context.Context, businessID string, id uuid.UUID) (PackageItem, error) {
	var item PackageItem
	err := r.Pool.QueryRow(ctx, getPackageSQL, businessID, id).Scan(
		&item.ID, &item.BusinessID, &item.Name, &item.Price,
	)
	return item, err
}

const createBookingSQL = `
INSERT INTO bookings (
	business_id, service_id, package_id, customer_name,
	starts_at, ends_at, status,
	subtotal, discount_amount, discount_reason, voucher_discount, total,
	payment_method, payment_type
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id, created_at`

// CreateBooking persists a confirmed booking and fills the generated fields.
func (r *PGRepo) CreateBooking(ctx context.Context, b Booking) (Booking, error) {
	err := r.Pool.QueryRow(ctx, createBookingSQL,
		b.BusinessID, b.ServiceID, b.PackageID, b.CustomerName,
		b.StartsAt, b.EndsAt, b.Status,
		b.Subtotal, b.DiscountAmount, b.DiscountReason, b.VoucherDiscount, b.Total,
		string(b.PaymentMethod), string(b.PaymentType),
	).Scan(&b.ID, &b.CreatedAt)
	return b, err
}

const getBookingSQL = `
SELECT id, business_id, service_id, package_id, customer_name,
	starts_at, ends_at, status,
	subtotal, discount_amount, discount_reason, voucher_discount, total,
	payment_method, payment_type, created_at
FROM bookings
WHERE business_id = $1 AND id = $2`

// GetBooking loads one booking scoped to the business.
func (r *PGRepo) GetBooking(ctx context.Context, businessID string, id uuid.UUID) (Booking, error) {
	var b Booking
	err := r.Pool.QueryRow(ctx, getBookingSQL, businessID, id).Scan(
		&b.ID, &b.BusinessID, &b.ServiceID, &b.PackageID, &b.CustomerName,
		&b.StartsAt, &b.EndsAt, &b.Status,
		&b.Subtotal, &b.DiscountAmount, &b.DiscountReason, &b.VoucherDiscount, &b.Total,
		&b.PaymentMethod, &b.PaymentType, &b.CreatedAt,
	)
	return b, err
}

const listBookingsSQL = `
SELECT id, business_id, service_id, package_id, customer_name,
	starts_at, ends_at, status,
	subtotal, discount_amount, discount_reason, voucher_discount, total,
	payment_method, payment_type, created_at
FROM bookings
WHERE business_id = $1 AND starts_at < $3 AND ends_at > $2 AND status <> 'canceled'
ORDER BY starts_at`

// ListBookings returns non-canceled bookings overlapping [from, to).
func (r *PGRepo) ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]Booking, error) {
	rows, err := r.Pool.Query(ctx, listBookingsSQL, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.BusinessID, &b.ServiceID, &b.PackageID, &b.CustomerName,
			&b.StartsAt, &b.EndsAt, &b.Status,
			&b.Subtotal, &b.DiscountAmount, &b.DiscountReason, &b.VoucherDiscount, &b.Total,
			&b.PaymentMethod, &b.PaymentType, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
