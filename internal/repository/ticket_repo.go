package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTicketNotFound is returned when a confirmation ticket does not exist or
// has already been consumed.
var ErrTicketNotFound = errors.New("confirmation ticket not found")

// ConfirmationTicket is the durable form of a pending confirmation. The
// in-memory pending record does not survive a restart or a full-page provider
// redirect; the ticket row, keyed by the id carried in the return URL, does.
type ConfirmationTicket struct {
	ID           string
	Kind         string
	PlanID       string
	ClientSecret string
	CreatedAt    time.Time
}

// TicketRepository defines methods for persisting confirmation tickets.
type TicketRepository interface {
	Create(ctx context.Context, t *ConfirmationTicket) error
	// Consume atomically removes the ticket and returns it, so exactly one
	// caller can complete a given confirmation. A missing or already-consumed
	// ticket returns ErrTicketNotFound.
	Consume(ctx context.Context, id string) (*ConfirmationTicket, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes tickets older than maxAge; the provider's secret
	// would have expired long since.
	DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}

type ticketRepo struct {
	pool *pgxpool.Pool
}

// NewTicketRepo creates a new TicketRepository.
func NewTicketRepo(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepo{pool: pool}
}

func (r *ticketRepo) Create(ctx context.Context, t *ConfirmationTicket) error {
	const q = `
        INSERT INTO confirmation_tickets (id, kind, plan_id, client_secret, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	_, err := r.pool.Exec(ctx, q, t.ID, t.Kind, t.PlanID, t.ClientSecret)
	if err != nil {
		return fmt.Errorf("create confirmation ticket %s: %w", t.ID, err)
	}
	return nil
}

func (r *ticketRepo) Consume(ctx context.Context, id string) (*ConfirmationTicket, error) {
	const q = `
        DELETE FROM confirmation_tickets
        WHERE id = $1
        RETURNING id, kind, plan_id, client_secret, created_at
    `
	var t ConfirmationTicket
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Kind, &t.PlanID, &t.ClientSecret, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume confirmation ticket %s: %w", id, err)
	}
	return &t, nil
}

func (r *ticketRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM confirmation_tickets WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete confirmation ticket %s: %w", id, err)
	}
	return nil
}

func (r *ticketRepo) DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	const q = `DELETE FROM confirmation_tickets WHERE created_at < NOW() - $1::interval`
	tag, err := r.pool.Exec(ctx, q, maxAge.String())
	if err != nil {
		return 0, fmt.Errorf("delete expired confirmation tickets: %w", err)
	}
	return tag.RowsAffected(), nil
}
