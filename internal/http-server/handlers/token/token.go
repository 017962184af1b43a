package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"qrpass/entity"
	"qrpass/lib/api/cont"
	"qrpass/lib/api/response"
	"qrpass/lib/sl"
)

type Core interface {
	IssueToken(ctx context.Context, req *entity.IssueRequest, caller *entity.Identity) (*entity.IssuedToken, error)
	DeactivateToken(ctx context.Context, tokenId string, caller *entity.Identity) error
	TokenImage(ctx context.Context, tokenId string, caller *entity.Identity) ([]byte, error)
}

func Issue(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.token")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			logger.Error("issuance service not available")
			render.Status(r, 503)
			render.JSON(w, r, response.Error("Issuance service not available"))
			return
		}

		var req entity.IssueRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		caller := cont.GetIdentity(r.Context())
		logger = logger.With(
			slog.String("scope_id", req.ScopeId),
			slog.String("caller_id", caller.UserId),
		)

		issued, err := handler.IssueToken(r.Context(), &req, caller)
		if err != nil {
			status, msg := issueError(err)
			logger.Warn("issue token", sl.Err(err))
			render.Status(r, status)
			render.JSON(w, r, response.Error(msg))
			return
		}
		logger.With(
			slog.String("token_id", issued.Token.Id),
		).Debug("token issued")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(issued))
	}
}

func issueError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrInvalidWindow):
		return 400, fmt.Sprintf("Invalid request: %v", err)
	case errors.Is(err, entity.ErrUnknownScope):
		return 404, "Scope not found"
	case errors.Is(err, entity.ErrNotAllowed):
		return 403, "Not allowed"
	case errors.Is(err, entity.ErrStorageUnavailable):
		return 503, "Storage unavailable, try again"
	default:
		return 500, "Issue failed"
	}
}

func Deactivate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.token")
		tokenId := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("token_id", tokenId),
		)

		if handler == nil {
			logger.Error("issuance service not available")
			render.Status(r, 503)
			render.JSON(w, r, response.Error("Issuance service not available"))
			return
		}
		if tokenId == "" {
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Token id is required"))
			return
		}
		caller := cont.GetIdentity(r.Context())

		err := handler.DeactivateToken(r.Context(), tokenId, caller)
		if err != nil {
			status, msg := deactivateError(err)
			logger.Warn("deactivate token", sl.Err(err))
			render.Status(r, status)
			render.JSON(w, r, response.Error(msg))
			return
		}
		logger.Debug("token deactivated")

		render.JSON(w, r, response.Ok(nil))
	}
}

func deactivateError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return 404, "Token not found"
	case errors.Is(err, entity.ErrNotAllowed):
		return 403, "Not allowed"
	case errors.Is(err, entity.ErrStorageUnavailable):
		return 503, "Storage unavailable, try again"
	default:
		return 500, "Deactivate failed"
	}
}

// Image streams the rendered QR PNG for an issued token.
func Image(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.token")
		tokenId := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("token_id", tokenId),
		)

		if handler == nil {
			logger.Error("issuance service not available")
			render.Status(r, 503)
			render.JSON(w, r, response.Error("Issuance service not available"))
			return
		}
		caller := cont.GetIdentity(r.Context())

		png, err := handler.TokenImage(r.Context(), tokenId, caller)
		if err != nil {
			status, msg := deactivateError(err)
			logger.Warn("render token image", sl.Err(err))
			render.Status(r, status)
			render.JSON(w, r, response.Error(msg))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		if _, err = w.Write(png); err != nil {
			logger.Error("failed to write image", sl.Err(err))
		}
	}
}
