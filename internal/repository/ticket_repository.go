package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// TicketRepository reads ticket scheduling facts from the ticketing system.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListAssigned(ctx context.Context, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, title, priority, assignee_staff_id, expected_date, created_at
        FROM tickets WHERE id=$1 AND archived_at IS NULL`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListAssigned(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `
        SELECT id, title, priority, assignee_staff_id, expected_date, created_at
        FROM tickets
        WHERE archived_at IS NULL AND assignee_staff_id IS NOT NULL
        ORDER BY created_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket       domain.Ticket
			expectedDate *time.Time
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Priority,
			&ticket.AssigneeID,
			&expectedDate,
			&ticket.CreatedAt,
		); err != nil {
			return nil, err
		}
		if expectedDate != nil {
			ticket.ExpectedDate = *expectedDate
		}
		ticket.Priority = normalizePriority(ticket.Priority)
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// normalizePriority maps unknown or missing priorities to MEDIUM.
func normalizePriority(p domain.TicketPriority) domain.TicketPriority {
	if !p.IsValid() {
		return domain.TicketPriorityMedium
	}
	return p
}
