package attendance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"qrpass/entity"
	"qrpass/lib/api/cont"
	"qrpass/lib/api/response"
	"qrpass/lib/clock"
	"qrpass/lib/sl"
)

type Core interface {
	Attendance(ctx context.Context, q *entity.AttendanceQuery, caller *entity.Identity) ([]*entity.AttendanceRecord, error)
}

// List serves ledger queries: GET /v1/attendance?user_id=&scope_id=&from=&to=
// with from/to as YYYY-MM-DD, both optional and inclusive.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.attendance")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("ledger service not available")
			render.Status(r, 503)
			render.JSON(w, r, response.Error("Ledger service not available"))
			return
		}

		q := entity.AttendanceQuery{
			UserId:  r.URL.Query().Get("user_id"),
			ScopeId: r.URL.Query().Get("scope_id"),
		}
		caller := cont.GetIdentity(r.Context())
		if q.UserId == "" && q.ScopeId == "" {
			q.UserId = caller.UserId
		}

		var err error
		if q.From, err = parseDay(r.URL.Query().Get("from")); err != nil {
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Invalid from date, use YYYY-MM-DD"))
			return
		}
		if q.To, err = parseDay(r.URL.Query().Get("to")); err != nil {
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Invalid to date, use YYYY-MM-DD"))
			return
		}
		logger = logger.With(
			slog.String("user_id", q.UserId),
			slog.String("scope_id", q.ScopeId),
		)

		records, err := handler.Attendance(r.Context(), &q, caller)
		if err != nil {
			switch {
			case errors.Is(err, entity.ErrNotAllowed):
				render.Status(r, 403)
				render.JSON(w, r, response.Error("Not allowed"))
			case errors.Is(err, entity.ErrStorageUnavailable):
				logger.Error("attendance query storage failure", sl.Err(err))
				render.Status(r, 503)
				render.JSON(w, r, response.Error("Storage unavailable, try again"))
			default:
				logger.Error("attendance query", sl.Err(err))
				render.Status(r, 400)
				render.JSON(w, r, response.Error("Query failed"))
			}
			return
		}
		logger.With(slog.Int("count", len(records))).Debug("attendance queried")

		render.JSON(w, r, response.Ok(records))
	}
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return clock.ParseDay(s)
}
