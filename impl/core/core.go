// Package core is the facade the HTTP boundary talks to. It enforces the
// authorization preconditions (who may issue, deactivate, query) and
// delegates to the issuance service, redemption engine and ledger.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	qrcode "github.com/skip2/go-qrcode"

	"qrpass/entity"
	"qrpass/impl/issuance"
	"qrpass/impl/ledger"
	"qrpass/impl/redemption"
	"qrpass/lib/sl"
)

type AuthService interface {
	IdentityByToken(ctx context.Context, token string) (*entity.Identity, error)
}

// Directory resolves scope records; nil when the directory database is
// disabled, in which case admins are checked against the scope id itself.
type Directory interface {
	Scope(ctx context.Context, id string) (*entity.Scope, error)
}

// Encoder re-renders a stored token into its QR payload string.
type Encoder interface {
	Encode(token *entity.Token) (string, error)
}

const qrImageSize = 256

type Core struct {
	auth       AuthService
	issuance   *issuance.Service
	redemption *redemption.Engine
	ledger     *ledger.Ledger
	dir        Directory
	codec      Encoder
	log        *slog.Logger
}

func New(iss *issuance.Service, eng *redemption.Engine, led *ledger.Ledger, codec Encoder, log *slog.Logger) *Core {
	if iss == nil || eng == nil || led == nil {
		panic("core services are nil")
	}
	return &Core{
		issuance:   iss,
		redemption: eng,
		ledger:     led,
		codec:      codec,
		log:        log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetDirectory(dir Directory) {
	c.dir = dir
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.Identity, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.IdentityByToken(ctx, token)
}

// canManage is the administrative-capability precondition for issuance:
// admin role plus membership of the organization owning the scope.
func (c *Core) canManage(ctx context.Context, scopeId string, caller *entity.Identity) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: admin role required", entity.ErrNotAllowed)
	}
	if c.dir == nil {
		if caller.MemberOf(scopeId) {
			return nil
		}
		return fmt.Errorf("%w: not a member of scope organization", entity.ErrNotAllowed)
	}
	scope, err := c.dir.Scope(ctx, scopeId)
	if errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("%w: %s", entity.ErrUnknownScope, scopeId)
	}
	if err != nil {
		return err
	}
	if caller.CanManage(scope.OwnerOrganization()) {
		return nil
	}
	return fmt.Errorf("%w: not a member of scope organization", entity.ErrNotAllowed)
}

func (c *Core) IssueToken(ctx context.Context, req *entity.IssueRequest, caller *entity.Identity) (*entity.IssuedToken, error) {
	if err := c.canManage(ctx, req.ScopeId, caller); err != nil {
		return nil, err
	}
	return c.issuance.Issue(ctx, req, caller)
}

func (c *Core) DeactivateToken(ctx context.Context, tokenId string, caller *entity.Identity) error {
	return c.issuance.Deactivate(ctx, tokenId, caller)
}

// TokenImage renders the QR PNG for an issued token. Available to the
// issuer and to admins; the payload is re-encoded from the stored token,
// never persisted.
func (c *Core) TokenImage(ctx context.Context, tokenId string, caller *entity.Identity) ([]byte, error) {
	token, err := c.issuance.Token(ctx, tokenId)
	if err != nil {
		return nil, err
	}
	if token.IssuerId != caller.UserId && !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: not the issuer", entity.ErrNotAllowed)
	}
	if c.codec == nil {
		return nil, fmt.Errorf("codec not connected")
	}
	payload, err := c.codec.Encode(token)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr image: %w", err)
	}
	return png, nil
}

// Redeem runs the redemption engine and folds policy rejections into the
// result envelope; only storage failures surface as errors.
func (c *Core) Redeem(ctx context.Context, req *entity.RedeemRequest, caller *entity.Identity) (*entity.RedeemResult, error) {
	record, err := c.redemption.Redeem(ctx, req.QrPayload, caller.UserId, req.Location)
	if err != nil {
		if rej, ok := redemption.AsRejection(err); ok {
			return &entity.RedeemResult{
				Status: entity.ScanRejected,
				Reason: rej.Reason,
			}, nil
		}
		return nil, err
	}
	return &entity.RedeemResult{
		Status:     entity.ScanAccepted,
		Attendance: record,
	}, nil
}

// Attendance queries the ledger. Members may read their own records only;
// staff and admins may read per scope or per user.
func (c *Core) Attendance(ctx context.Context, q *entity.AttendanceQuery, caller *entity.Identity) ([]*entity.AttendanceRecord, error) {
	if !caller.IsStaff() && q.UserId != caller.UserId {
		return nil, fmt.Errorf("%w: members may query own attendance only", entity.ErrNotAllowed)
	}
	return c.ledger.Query(ctx, q)
}
