package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"qrpass/entity"
	"qrpass/lib/api/cont"
	"qrpass/lib/api/response"
	"qrpass/lib/sl"
)

type Core interface {
	Redeem(ctx context.Context, req *entity.RedeemRequest, caller *entity.Identity) (*entity.RedeemResult, error)
}

// Redeem handles one scan event. Policy rejections are expected outcomes
// and come back 200 inside the envelope with status=rejected; only
// transient storage failures produce an error status, so scan clients can
// retry those and only those.
func Redeem(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.scan")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("redemption service not available")
			render.Status(r, 503)
			render.JSON(w, r, response.Error("Redemption service not available"))
			return
		}

		var req entity.RedeemRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		caller := cont.GetIdentity(r.Context())
		logger = logger.With(
			slog.String("user_id", caller.UserId),
		)

		result, err := handler.Redeem(r.Context(), &req, caller)
		if err != nil {
			if errors.Is(err, entity.ErrStorageUnavailable) {
				logger.Error("redeem storage failure", sl.Err(err))
				render.Status(r, 503)
				render.JSON(w, r, response.Error("Storage unavailable, try again"))
				return
			}
			logger.Error("redeem", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Redemption failed"))
			return
		}

		if result.Status == entity.ScanRejected {
			logger.Debug("scan rejected", sl.Reason(result.Reason))
		} else {
			logger.Debug("scan accepted", slog.String("scope_id", result.Attendance.ScopeId))
		}

		render.JSON(w, r, response.Ok(result))
	}
}
