package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpass/entity"
)

type fakeStore struct {
	lastQuery *entity.AttendanceQuery
	records   []*entity.AttendanceRecord
}

func (f *fakeStore) QueryAttendance(_ context.Context, q *entity.AttendanceQuery) ([]*entity.AttendanceRecord, error) {
	f.lastQuery = q
	return f.records, nil
}

func (f *fakeStore) AttendanceExists(_ context.Context, userId, scopeId, date string) (bool, error) {
	for _, r := range f.records {
		if r.UserId == userId && r.ScopeId == scopeId && r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueryRequiresFilter(t *testing.T) {
	led := New(&fakeStore{}, discard())

	_, err := led.Query(context.Background(), nil)
	require.Error(t, err)

	_, err = led.Query(context.Background(), &entity.AttendanceQuery{})
	require.Error(t, err)
}

func TestQueryRejectsInvertedRange(t *testing.T) {
	led := New(&fakeStore{}, discard())

	_, err := led.Query(context.Background(), &entity.AttendanceQuery{
		UserId: "user-1",
		From:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestQueryPassesFilter(t *testing.T) {
	store := &fakeStore{records: []*entity.AttendanceRecord{
		{UserId: "user-1", ScopeId: "org-1", Date: "2025-03-10"},
	}}
	led := New(store, discard())

	q := &entity.AttendanceQuery{ScopeId: "org-1"}
	records, err := led.Query(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Same(t, q, store.lastQuery)
}

func TestExistsFor(t *testing.T) {
	store := &fakeStore{records: []*entity.AttendanceRecord{
		{UserId: "user-1", ScopeId: "org-1", Date: "2025-03-10"},
	}}
	led := New(store, discard())

	ok, err := led.ExistsFor(context.Background(), "user-1", "org-1", "2025-03-10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = led.ExistsFor(context.Background(), "user-1", "org-1", "2025-03-11")
	require.NoError(t, err)
	assert.False(t, ok)
}
