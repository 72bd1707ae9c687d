package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// WorkLogRepository stores the append-only work command audit trail.
type WorkLogRepository interface {
	Create(ctx context.Context, entry *domain.WorkLogEntry) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.WorkLogEntry, error)
}

type workLogRepository struct {
	pool *pgxpool.Pool
}

// NewWorkLogRepository builds repository.
func NewWorkLogRepository(pool *pgxpool.Pool) WorkLogRepository {
	return &workLogRepository{pool: pool}
}

func (r *workLogRepository) Create(ctx context.Context, entry *domain.WorkLogEntry) error {
	const query = `
        INSERT INTO work_log (id, ticket_id, command, from_state, to_state, active_added, pause_added, actor_type, actor_id, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.Command,
		entry.FromState,
		entry.ToState,
		entry.ActiveAdded,
		entry.PauseAdded,
		entry.ActorType,
		entry.ActorID,
		entry.OccurredAt,
	).Scan(&entry.CreatedAt)
}

func (r *workLogRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.WorkLogEntry, error) {
	limit, offset = normalizePage(limit, offset)
	const query = `
        SELECT id, ticket_id, command, from_state, to_state, active_added, pause_added, actor_type, actor_id, occurred_at, created_at
        FROM work_log WHERE ticket_id=$1 ORDER BY occurred_at ASC, created_at ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkLogEntry
	for rows.Next() {
		var entry domain.WorkLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Command,
			&entry.FromState,
			&entry.ToState,
			&entry.ActiveAdded,
			&entry.PauseAdded,
			&entry.ActorType,
			&entry.ActorID,
			&entry.OccurredAt,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
