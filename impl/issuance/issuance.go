// Package issuance creates and deactivates attendance tokens.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qrpass/entity"
	"qrpass/lib/sl"
)

// Store is the token persistence surface. Implemented by
// internal/database.MongoDB.
type Store interface {
	SaveToken(ctx context.Context, token *entity.Token) error
	Token(ctx context.Context, id string) (*entity.Token, error)
	ActiveTokensForScope(ctx context.Context, scopeId string) ([]*entity.Token, error)
	DeactivateToken(ctx context.Context, id string) error
}

// Encoder renders a token into its opaque QR string.
type Encoder interface {
	Encode(token *entity.Token) (string, error)
}

// Directory verifies that a scope exists. Optional; nil skips the check.
type Directory interface {
	Scope(ctx context.Context, id string) (*entity.Scope, error)
}

// Policy carries the configured issuance defaults.
type Policy struct {
	DefaultValidityHours float64
	SingleActivePerScope bool
	DuplicatePolicy      entity.DuplicatePolicy
}

type Service struct {
	store  Store
	codec  Encoder
	dir    Directory
	policy Policy
	now    func() time.Time
	log    *slog.Logger
}

func New(store Store, codec Encoder, dir Directory, policy Policy, log *slog.Logger) *Service {
	if store == nil {
		panic("token store is nil")
	}
	if codec == nil {
		panic("codec is nil")
	}
	if !policy.DuplicatePolicy.Valid() {
		policy.DuplicatePolicy = entity.DuplicatePerToken
	}
	if policy.DefaultValidityHours <= 0 {
		policy.DefaultValidityHours = 1
	}
	return &Service{
		store:  store,
		codec:  codec,
		dir:    dir,
		policy: policy,
		now:    time.Now,
		log:    log.With(sl.Module("issuance")),
	}
}

// WithNow overrides the service clock. Test hook.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue creates a token for a scope. The administrative-capability check
// over the scope happens at the boundary before this call.
//
// When the single-active-token policy applies, every currently-active
// token for the scope is deactivated first. The two steps are not one
// transaction; racing issuances may briefly leave two active tokens, but
// each deactivation is atomic per token so none is ever lost.
func (s *Service) Issue(ctx context.Context, req *entity.IssueRequest, issuer *entity.Identity) (*entity.IssuedToken, error) {
	now := s.now()

	if req.ValidityHours == 0 && req.ValidUntil.IsZero() {
		req.ValidityHours = s.policy.DefaultValidityHours
	}
	validFrom, validUntil := req.Window(now)
	if !validFrom.Before(validUntil) {
		return nil, fmt.Errorf("%w: valid_until must be after valid_from", entity.ErrInvalidWindow)
	}

	if s.dir != nil {
		if _, err := s.dir.Scope(ctx, req.ScopeId); err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", entity.ErrUnknownScope, req.ScopeId)
			}
			return nil, err
		}
	}

	dupPolicy := req.DuplicatePolicy
	if !dupPolicy.Valid() {
		dupPolicy = s.policy.DuplicatePolicy
	}

	if s.policy.SingleActivePerScope {
		if err := s.retireActive(ctx, req.ScopeId); err != nil {
			return nil, err
		}
	}

	token := &entity.Token{
		Id:                 uuid.NewString(),
		Nonce:              uuid.NewString(),
		ScopeId:            req.ScopeId,
		IssuerId:           issuer.UserId,
		CreatedAt:          now,
		ValidFrom:          validFrom,
		ValidUntil:         validUntil,
		MaxScans:           req.MaxScans,
		AllowMultipleScans: req.AllowMultipleScans,
		DuplicatePolicy:    dupPolicy,
		Geofence:           req.Geofence,
		Active:             true,
	}

	payload, err := s.codec.Encode(token)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if err := s.store.SaveToken(ctx, token); err != nil {
		return nil, err
	}

	s.log.With(
		slog.String("token_id", token.Id),
		slog.String("scope_id", token.ScopeId),
		slog.String("issuer_id", token.IssuerId),
		slog.Int64("max_scans", token.MaxScans),
	).Info("token issued")

	return &entity.IssuedToken{Token: token, QrPayload: payload}, nil
}

// retireActive deactivates every active token of the scope, one atomic
// update each.
func (s *Service) retireActive(ctx context.Context, scopeId string) error {
	active, err := s.store.ActiveTokensForScope(ctx, scopeId)
	if err != nil {
		return err
	}
	for _, t := range active {
		if err := s.store.DeactivateToken(ctx, t.Id); err != nil {
			return err
		}
		s.log.With(
			slog.String("token_id", t.Id),
			slog.String("scope_id", scopeId),
		).Debug("previous token deactivated")
	}
	return nil
}

// Deactivate flips a token inactive. Allowed for the original issuer and
// for admins with capability over the token's scope; idempotent for
// already-inactive tokens.
func (s *Service) Deactivate(ctx context.Context, tokenId string, caller *entity.Identity) error {
	token, err := s.store.Token(ctx, tokenId)
	if err != nil {
		return err
	}
	if token.IssuerId != caller.UserId && !caller.IsAdmin() {
		return fmt.Errorf("%w: not the issuer", entity.ErrNotAllowed)
	}
	if !token.Active {
		return nil
	}
	if err := s.store.DeactivateToken(ctx, tokenId); err != nil {
		return err
	}
	s.log.With(
		slog.String("token_id", tokenId),
		slog.String("caller_id", caller.UserId),
	).Info("token deactivated")
	return nil
}

// Token returns a stored token for boundary reads (QR re-render).
func (s *Service) Token(ctx context.Context, tokenId string) (*entity.Token, error) {
	return s.store.Token(ctx, tokenId)
}
