package worksession

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/worksession-tracker/internal/clock"
	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// TicketSnapshot is an immutable read of a ticket's work session.
type TicketSnapshot struct {
	TicketID           string
	Priority           domain.TicketPriority
	ExpectedDate       time.Time
	State              domain.WorkState
	TotalActiveMinutes int64
	TotalPauseMinutes  int64
	IsOverdue          bool
	AsOf               time.Time
}

// Transition is the result of a successfully applied command.
type Transition struct {
	Outcome  Outcome
	Snapshot TicketSnapshot
}

// view is the state published after every transition. Readers only ever see
// a complete view.
type view struct {
	ticket domain.Ticket
	state  domain.WorkState
	ledger TimeLedger
}

type entry struct {
	mu        sync.Mutex
	ticket    domain.Ticket
	machine   *Machine
	published atomic.Pointer[view]
	// removed is set under mu once the entry leaves the registry map.
	removed bool
}

func (e *entry) publish() {
	e.published.Store(&view{ticket: e.ticket, state: e.machine.State(), ledger: e.machine.Ledger()})
}

// Registry owns one state machine per ticket id. Commands for the same ticket
// are serialized; commands for different tickets run in parallel. Reads are
// served from the last published view and never wait on a command.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   clock.Clock
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(clk clock.Clock, logger *zap.Logger) *Registry {
	if clk == nil {
		clk = clock.Real(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*entry),
		clock:   clk,
		logger:  logger,
	}
}

// Register records an assigned ticket. If the ticket is already tracked its
// scheduling facts are refreshed and its work session is left untouched. The
// returned bool reports whether a new entry was created.
func (r *Registry) Register(ticket domain.Ticket) (TicketSnapshot, bool) {
	for {
		e, created := r.getOrCreate(ticket.ID, &ticket)
		if created {
			return r.snapshotOf(e, r.clock.Now()), true
		}
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.ticket = ticket
		e.publish()
		e.mu.Unlock()
		return r.snapshotOf(e, r.clock.Now()), false
	}
}

// Remove evicts a ticket, typically once it is archived upstream. A command
// already waiting on the ticket observes the eviction and does not commit.
func (r *Registry) Remove(ticketID string) bool {
	for {
		e, ok := r.lookup(ticketID)
		if !ok {
			return false
		}
		e.mu.Lock()
		evicted := r.evictLocked(ticketID, e)
		e.mu.Unlock()
		if evicted {
			return true
		}
	}
}

// evictLocked marks e removed and drops it from the map. e.mu must be held.
func (r *Registry) evictLocked(ticketID string, e *entry) bool {
	if e.removed {
		return false
	}
	e.removed = true
	r.mu.Lock()
	if r.entries[ticketID] == e {
		delete(r.entries, ticketID)
	}
	r.mu.Unlock()
	return true
}

// Len returns the number of tracked tickets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Start begins work on a ticket, creating its entry if needed.
func (r *Registry) Start(ticketID string) (TicketSnapshot, error) {
	return r.snapshotResult(r.Apply(ticketID, domain.WorkCommandStart))
}

// Pause pauses active work.
func (r *Registry) Pause(ticketID string) (TicketSnapshot, error) {
	return r.snapshotResult(r.Apply(ticketID, domain.WorkCommandPause))
}

// Resume resumes paused work.
func (r *Registry) Resume(ticketID string) (TicketSnapshot, error) {
	return r.snapshotResult(r.Apply(ticketID, domain.WorkCommandResume))
}

// Complete marks active work as dev-completed.
func (r *Registry) Complete(ticketID string) (TicketSnapshot, error) {
	return r.snapshotResult(r.Apply(ticketID, domain.WorkCommandComplete))
}

// SendToSupport hands completed work to support. The state does not change;
// delivering the notification is the caller's concern.
func (r *Registry) SendToSupport(ticketID string) (TicketSnapshot, error) {
	return r.snapshotResult(r.Apply(ticketID, domain.WorkCommandSendToSupport))
}

// StartWith begins work on ticket. When the ticket is not tracked its entry is
// created from the given facts; a tracked ticket keeps the facts it has.
func (r *Registry) StartWith(ticket domain.Ticket) (Transition, error) {
	return r.apply(ticket.ID, domain.WorkCommandStart, &ticket)
}

// Apply runs cmd against the ticket's machine at the current clock time.
func (r *Registry) Apply(ticketID string, cmd domain.WorkCommand) (Transition, error) {
	return r.apply(ticketID, cmd, nil)
}

func (r *Registry) apply(ticketID string, cmd domain.WorkCommand, ticket *domain.Ticket) (Transition, error) {
	for {
		var e *entry
		if cmd == domain.WorkCommandStart {
			e, _ = r.getOrCreate(ticketID, ticket)
		} else {
			var ok bool
			if e, ok = r.lookup(ticketID); !ok {
				return Transition{}, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, ticketID)
			}
		}

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			if cmd != domain.WorkCommandStart {
				return Transition{}, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, ticketID)
			}
			continue
		}
		t, err := r.applyLocked(e, ticketID, cmd)
		e.mu.Unlock()
		return t, err
	}
}

// applyLocked runs cmd on e. e.mu must be held.
func (r *Registry) applyLocked(e *entry, ticketID string, cmd domain.WorkCommand) (Transition, error) {
	now := r.clock.Now()
	out, err := e.machine.Apply(cmd, now)
	if err != nil {
		var ledgerErr *domain.LedgerError
		if errors.As(err, &ledgerErr) {
			r.logger.Error("ledger invariant violated; command rejected",
				zap.String("ticket_id", ticketID),
				zap.String("command", string(cmd)),
				zap.String("state", string(e.machine.State())),
				zap.Error(err))
		}
		return Transition{}, err
	}
	e.publish()
	return Transition{Outcome: out, Snapshot: r.snapshotOf(e, now)}, nil
}

// Snapshot returns the current read of a ticket.
func (r *Registry) Snapshot(ticketID string) (TicketSnapshot, error) {
	e, ok := r.lookup(ticketID)
	if !ok {
		return TicketSnapshot{}, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, ticketID)
	}
	return r.snapshotOf(e, r.clock.Now()), nil
}

// Snapshots returns a read of every tracked ticket ordered by ticket id.
func (r *Registry) Snapshots() []TicketSnapshot {
	r.mu.RLock()
	list := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, e)
	}
	r.mu.RUnlock()

	now := r.clock.Now()
	result := make([]TicketSnapshot, 0, len(list))
	for _, e := range list {
		result = append(result, r.snapshotOf(e, now))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TicketID < result[j].TicketID
	})
	return result
}

func (r *Registry) lookup(ticketID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ticketID]
	return e, ok
}

func (r *Registry) getOrCreate(ticketID string, ticket *domain.Ticket) (*entry, bool) {
	if e, ok := r.lookup(ticketID); ok {
		return e, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[ticketID]; ok {
		return e, false
	}
	e := &entry{
		ticket:  domain.Ticket{ID: ticketID},
		machine: NewMachine(NewTimeLedger(r.logger.With(zap.String("ticket_id", ticketID)))),
	}
	if ticket != nil {
		e.ticket = *ticket
	}
	e.publish()
	r.entries[ticketID] = e
	return e, true
}

func (r *Registry) snapshotOf(e *entry, now time.Time) TicketSnapshot {
	v := e.published.Load()
	ledger := v.ledger.Snapshot(now)
	return TicketSnapshot{
		TicketID:           v.ticket.ID,
		Priority:           v.ticket.Priority,
		ExpectedDate:       v.ticket.ExpectedDate,
		State:              v.state,
		TotalActiveMinutes: ledger.TotalActive(),
		TotalPauseMinutes:  ledger.TotalPause(),
		IsOverdue:          IsOverdue(v.ticket.ExpectedDate, v.state, now),
		AsOf:               now,
	}
}

func (r *Registry) snapshotResult(t Transition, err error) (TicketSnapshot, error) {
	if err != nil {
		return TicketSnapshot{}, err
	}
	return t.Snapshot, nil
}
