package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/database"
)

const addressColumns = `id, recipient, phone, line1, line2, city, state, postal_code, country, created_at`

// Store reads customers and their address books from Postgres.
type Store struct {
	DB database.DBTX
}

// NewStore constructs a Store.
func NewStore(db database.DBTX) *Store {
	return &Store{DB: db}
}

// GetCustomer loads the customer profile.
func (s *Store) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	if _, err := uuid.Parse(customerID); err != nil {
		return Customer{}, ErrCustomerNotFound
	}
	var c Customer
	err := s.DB.QueryRow(ctx, `SELECT id, email, name FROM customers WHERE id = $1`, customerID).
		Scan(&c.ID, &c.Email, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// GetAddress loads an address owned by customerID. Addresses of other customers
// are reported exactly like missing ones.
func (s *Store) GetAddress(ctx context.Context, customerID, addressID string) (Address, error) {
	if _, err := uuid.Parse(addressID); err != nil {
		return Address{}, common.AddressNotFound(addressID)
	}
	if _, err := uuid.Parse(customerID); err != nil {
		return Address{}, common.AddressNotFound(addressID)
	}
	row := s.DB.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND customer_id = $2`, addressID, customerID)
	a, err := scanAddress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Address{}, common.AddressNotFound(addressID)
		}
		return Address{}, fmt.Errorf("get address: %w", err)
	}
	return a, nil
}

// ListAddresses returns one page of the customer's addresses, newest first, and the total count.
func (s *Store) ListAddresses(ctx context.Context, customerID string, limit, offset int) ([]Address, int64, error) {
	if _, err := uuid.Parse(customerID); err != nil {
		return []Address{}, 0, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT `+addressColumns+` FROM addresses
		WHERE customer_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()
	out := make([]Address, 0, limit)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM addresses WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count addresses: %w", err)
	}
	return out, total, nil
}

// CreateAddress stores a new address for customerID.
func (s *Store) CreateAddress(ctx context.Context, customerID string, in AddressInput) (Address, error) {
	if _, err := uuid.Parse(customerID); err != nil {
		return Address{}, ErrCustomerNotFound
	}
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if country == "" {
		country = "BR"
	}
	row := s.DB.QueryRow(ctx, `INSERT INTO addresses (customer_id, recipient, phone, line1, line2, city, state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+addressColumns,
		customerID, strings.TrimSpace(in.Recipient), strings.TrimSpace(in.Phone), strings.TrimSpace(in.Line1),
		strings.TrimSpace(in.Line2), strings.TrimSpace(in.City), strings.TrimSpace(in.State),
		strings.TrimSpace(in.PostalCode), country)
	a, err := scanAddress(row)
	if err != nil {
		return Address{}, fmt.Errorf("create address: %w", err)
	}
	return a, nil
}

// DeleteAddress removes an address owned by customerID.
func (s *Store) DeleteAddress(ctx context.Context, customerID, addressID string) error {
	if _, err := uuid.Parse(addressID); err != nil {
		return common.AddressNotFound(addressID)
	}
	tag, err := s.DB.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND customer_id = $2`, addressID, customerID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.AddressNotFound(addressID)
	}
	return nil
}

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.Recipient, &a.Phone, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.CreatedAt)
	return a, err
}
