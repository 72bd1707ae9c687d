package worksession

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// TimeLedger accumulates closed Active and Pause segment durations for one
// ticket. Totals are whole minutes and only ever include closed segments.
//
// TimeLedger is a value type so a transition can stage changes on a copy and
// commit them together with the state change.
type TimeLedger struct {
	closedActive  int64
	closedPause   int64
	openKind      domain.SegmentKind
	openStartedAt time.Time
	logger        *zap.Logger
}

// LedgerSnapshot is a point-in-time read of a ledger.
type LedgerSnapshot struct {
	ClosedActive int64
	ClosedPause  int64
	OpenMinutes  int64
	OpenKind     domain.SegmentKind
}

// NewTimeLedger creates an empty ledger.
func NewTimeLedger(logger *zap.Logger) TimeLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return TimeLedger{openKind: domain.SegmentNone, logger: logger}
}

// Open starts a segment of the given kind.
func (l *TimeLedger) Open(kind domain.SegmentKind, at time.Time) error {
	if l.IsOpen() {
		return &domain.LedgerError{Kind: domain.ErrSegmentAlreadyOpen, Segment: l.openKind}
	}
	l.openKind = kind
	l.openStartedAt = at
	return nil
}

// Close ends the open segment and returns the whole minutes it added.
func (l *TimeLedger) Close(at time.Time) (int64, error) {
	if !l.IsOpen() {
		return 0, &domain.LedgerError{Kind: domain.ErrNoOpenSegment}
	}
	delta := at.Sub(l.openStartedAt)
	if delta < 0 {
		l.logger.Warn("clock skew: segment closed before it opened; counting zero",
			zap.String("segment", string(l.openKind)),
			zap.Time("opened_at", l.openStartedAt),
			zap.Time("closed_at", at),
			zap.Duration("delta", delta))
		delta = 0
	}
	minutes := wholeMinutes(delta)
	switch l.openKind {
	case domain.SegmentActive:
		l.closedActive += minutes
	case domain.SegmentPause:
		l.closedPause += minutes
	}
	l.openKind = domain.SegmentNone
	l.openStartedAt = time.Time{}
	return minutes, nil
}

// Snapshot reads the ledger at the given instant without mutating it.
func (l TimeLedger) Snapshot(at time.Time) LedgerSnapshot {
	snap := LedgerSnapshot{
		ClosedActive: l.closedActive,
		ClosedPause:  l.closedPause,
		OpenKind:     l.openKind,
	}
	if l.IsOpen() {
		if delta := at.Sub(l.openStartedAt); delta > 0 {
			snap.OpenMinutes = wholeMinutes(delta)
		}
	}
	return snap
}

// IsOpen reports whether a segment is currently open.
func (l TimeLedger) IsOpen() bool {
	return l.openKind != "" && l.openKind != domain.SegmentNone
}

// OpenKind returns the kind of the open segment, or SegmentNone.
func (l TimeLedger) OpenKind() domain.SegmentKind {
	if !l.IsOpen() {
		return domain.SegmentNone
	}
	return l.openKind
}

// TotalActive adds the elapsed minutes of an open Active segment.
func (s LedgerSnapshot) TotalActive() int64 {
	if s.OpenKind == domain.SegmentActive {
		return s.ClosedActive + s.OpenMinutes
	}
	return s.ClosedActive
}

// TotalPause adds the elapsed minutes of an open Pause segment.
func (s LedgerSnapshot) TotalPause() int64 {
	if s.OpenKind == domain.SegmentPause {
		return s.ClosedPause + s.OpenMinutes
	}
	return s.ClosedPause
}

func wholeMinutes(d time.Duration) int64 {
	return int64(d / time.Minute)
}
