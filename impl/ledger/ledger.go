// Package ledger reads the append-only attendance record collection.
// Appends happen only inside the redemption commit; there is no update or
// delete path, corrections are an administrative concern outside the core.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"qrpass/entity"
	"qrpass/lib/sl"
)

// Store is the attendance query surface. Implemented by
// internal/database.MongoDB.
type Store interface {
	QueryAttendance(ctx context.Context, q *entity.AttendanceQuery) ([]*entity.AttendanceRecord, error)
	AttendanceExists(ctx context.Context, userId, scopeId, date string) (bool, error)
}

type Ledger struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Ledger {
	if store == nil {
		panic("attendance store is nil")
	}
	return &Ledger{
		store: store,
		log:   log.With(sl.Module("ledger")),
	}
}

// Query returns attendance records matching the filter. At least one of
// user id or scope id must be set; an unbounded full-collection read is
// refused.
func (l *Ledger) Query(ctx context.Context, q *entity.AttendanceQuery) ([]*entity.AttendanceRecord, error) {
	if q == nil || (q.UserId == "" && q.ScopeId == "") {
		return nil, fmt.Errorf("attendance query requires a user or scope filter")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, fmt.Errorf("attendance query range is inverted")
	}
	return l.store.QueryAttendance(ctx, q)
}

// ExistsFor reports whether the user already holds an attendance record
// for the scope on the given UTC date.
func (l *Ledger) ExistsFor(ctx context.Context, userId, scopeId, date string) (bool, error) {
	return l.store.AttendanceExists(ctx, userId, scopeId, date)
}
