package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-checkout/internal/database"
)

// ErrDLQEntryNotFound is returned when a DLQ id does not exist.
var ErrDLQEntryNotFound = errors.New("queue: dlq entry not found")

// Store persists tasks that exhausted their attempts so operators can inspect and replay them.
type Store interface {
	Add(ctx context.Context, entry DLQEntry) (uuid.UUID, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (DLQEntry, error)
	List(ctx context.Context, kind string, limit, offset int) ([]DLQEntry, error)
	Count(ctx context.Context, kind string) (int64, error)
}

// DLQEntry represents an item stored in the queue_dlq table.
type DLQEntry struct {
	ID             uuid.UUID
	Kind           string
	IdempotencyKey string
	Payload        []byte
	Attempts       int
	LastError      *string
	CreatedAt      time.Time
}

const dlqColumns = `id, kind, idem_key, payload, attempts, last_error, created_at`

// NewStore constructs a Store over a pool or transaction.
func NewStore(db database.DBTX) Store {
	return &pgStore{db: db}
}

type pgStore struct {
	db database.DBTX
}

func (s *pgStore) Add(ctx context.Context, entry DLQEntry) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO queue_dlq (kind, idem_key, payload, attempts, last_error) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		entry.Kind, entry.IdempotencyKey, entry.Payload, entry.Attempts, entry.LastError,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert dlq entry: %w", err)
	}
	return id, nil
}

func (s *pgStore) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM queue_dlq WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete dlq entry: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (DLQEntry, error) {
	entry, err := scanEntry(s.db.QueryRow(ctx, `SELECT `+dlqColumns+` FROM queue_dlq WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DLQEntry{}, ErrDLQEntryNotFound
	}
	return entry, err
}

func (s *pgStore) List(ctx context.Context, kind string, limit, offset int) ([]DLQEntry, error) {
	limit = clampPositive(limit, 1, 500)
	offset = max(offset, 0)
	rows, err := s.db.Query(ctx,
		`SELECT `+dlqColumns+` FROM queue_dlq WHERE ($1 = '' OR kind = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		strings.TrimSpace(kind), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list dlq: %w", err)
	}
	defer rows.Close()

	entries := make([]DLQEntry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *pgStore) Count(ctx context.Context, kind string) (int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM queue_dlq WHERE ($1 = '' OR kind = $1)`, strings.TrimSpace(kind)).Scan(&total); err != nil {
		return 0, fmt.Errorf("count dlq: %w", err)
	}
	return total, nil
}

func scanEntry(row pgx.Row) (DLQEntry, error) {
	var entry DLQEntry
	if err := row.Scan(&entry.ID, &entry.Kind, &entry.IdempotencyKey, &entry.Payload, &entry.Attempts, &entry.LastError, &entry.CreatedAt); err != nil {
		return DLQEntry{}, err
	}
	return entry, nil
}

func clampPositive(value, lo, hi int) int {
	return min(max(value, lo), hi)
}
