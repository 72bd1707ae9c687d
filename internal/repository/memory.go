package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// MemoryTicketRepository is a TicketRepository used when no database is
// configured, and in tests.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository seeds a repository with tickets.
func NewMemoryTicketRepository(tickets ...domain.Ticket) *MemoryTicketRepository {
	r := &MemoryTicketRepository{tickets: make(map[string]domain.Ticket, len(tickets))}
	for _, t := range tickets {
		r.Put(t)
	}
	return r
}

// Put inserts or replaces a ticket. Unknown priorities are stored as MEDIUM.
func (r *MemoryTicketRepository) Put(ticket domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.Priority = normalizePriority(ticket.Priority)
	r.tickets[ticket.ID] = ticket
}

// Delete removes a ticket.
func (r *MemoryTicketRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, id)
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *MemoryTicketRepository) ListAssigned(_ context.Context, limit int) ([]domain.Ticket, error) {
	r.mu.RLock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if t.AssigneeID != nil {
			result = append(result, t)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MemoryWorkLogRepository keeps the audit trail in memory.
type MemoryWorkLogRepository struct {
	mu      sync.Mutex
	entries map[string][]domain.WorkLogEntry
}

// NewMemoryWorkLogRepository creates an empty log.
func NewMemoryWorkLogRepository() *MemoryWorkLogRepository {
	return &MemoryWorkLogRepository{entries: make(map[string][]domain.WorkLogEntry)}
}

func (r *MemoryWorkLogRepository) Create(_ context.Context, entry *domain.WorkLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.CreatedAt = time.Now()
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], *entry)
	return nil
}

func (r *MemoryWorkLogRepository) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.WorkLogEntry, error) {
	limit, offset = normalizePage(limit, offset)
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.entries[ticketID]
	if offset >= len(all) {
		return []domain.WorkLogEntry{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]domain.WorkLogEntry{}, all[offset:end]...), nil
}

var (
	_ TicketRepository  = (*MemoryTicketRepository)(nil)
	_ WorkLogRepository = (*MemoryWorkLogRepository)(nil)
)
