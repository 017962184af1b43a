// Package redemption validates scanned QR payloads and converts accepted
// scans into attendance records.
//
// A redemption attempt walks a fixed sequence of checks; the first failing
// check wins and no state changes before the final commit. The commit
// itself is a single conditional storage update, so concurrent scans can
// never push a token past its cap and a user can never register twice
// against a single-use token, or twice for one scope and day under the
// per_scope_day policy, whatever the interleaving.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"qrpass/entity"
	"qrpass/lib/clock"
	"qrpass/lib/geo"
	"qrpass/lib/sl"
)

// TokenStore is the storage surface the engine needs. Implemented by
// internal/database.MongoDB.
type TokenStore interface {
	Token(ctx context.Context, id string) (*entity.Token, error)
	DeactivateToken(ctx context.Context, id string) error
	CommitScan(ctx context.Context, tokenId string, scan *entity.ScanRecord, record *entity.AttendanceRecord) (*entity.Token, error)
	RecordScan(ctx context.Context, scan *entity.ScanRecord) error
	HasAcceptedScan(ctx context.Context, tokenId, userId string) (bool, error)
	AttendanceExists(ctx context.Context, userId, scopeId, date string) (bool, error)
}

// Codec decodes raw scanned text into a token reference.
type Codec interface {
	Decode(raw string) (*entity.TokenRef, error)
}

// Error is a policy rejection: an expected, user-facing outcome. It is
// never logged as a system error and never retried.
type Error struct {
	Reason entity.RejectReason
}

func (e *Error) Error() string {
	return fmt.Sprintf("redemption rejected: %s", e.Reason)
}

func reject(reason entity.RejectReason) *Error {
	return &Error{Reason: reason}
}

// AsRejection unwraps a redemption rejection from an error chain.
func AsRejection(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

type Engine struct {
	store TokenStore
	codec Codec
	now   func() time.Time
	log   *slog.Logger
}

func New(store TokenStore, codec Codec, log *slog.Logger) *Engine {
	if store == nil {
		panic("token store is nil")
	}
	if codec == nil {
		panic("codec is nil")
	}
	return &Engine{
		store: store,
		codec: codec,
		now:   time.Now,
		log:   log.With(sl.Module("redemption")),
	}
}

// WithNow overrides the engine clock. Test hook.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Redeem runs the state machine for one scan event.
//
// Check order is fixed: decode, lookup, active, window, geofence,
// duplicate, capacity, commit. Policy rejections come back as *Error;
// transient storage failures wrap entity.ErrStorageUnavailable and must
// not be shown to the user as a rejection. Every rejection appends a
// rejected scan record for audit; that append is best-effort and never
// changes the reported outcome.
func (e *Engine) Redeem(ctx context.Context, rawQR, userId string, location *entity.Location) (*entity.AttendanceRecord, error) {
	now := e.now()

	ref, err := e.codec.Decode(rawQR)
	if err != nil {
		return nil, e.rejected(ctx, &entity.Token{}, userId, location, now, entity.RejectMalformedCode)
	}

	token, err := e.store.Token(ctx, ref.Id)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, e.rejected(ctx, &entity.Token{Id: ref.Id, ScopeId: ref.ScopeId}, userId, location, now, entity.RejectUnknownToken)
	}
	if err != nil {
		return nil, err
	}
	// a decoded payload whose nonce does not match the stored token is a
	// forgery of a known id, not a known token
	if token.Nonce != ref.Nonce {
		return nil, e.rejected(ctx, &entity.Token{Id: ref.Id, ScopeId: ref.ScopeId}, userId, location, now, entity.RejectUnknownToken)
	}

	if !token.Active {
		return nil, e.rejected(ctx, token, userId, location, now, inactiveReason(token, now))
	}

	if token.NotYetValid(now) {
		return nil, e.rejected(ctx, token, userId, location, now, entity.RejectNotYetValid)
	}
	if token.Expired(now) {
		// expiry is self-reporting: flip active here, no background sweep
		if err := e.store.DeactivateToken(ctx, token.Id); err != nil {
			e.log.Warn("deactivate expired token", slog.String("token_id", token.Id), sl.Err(err))
		}
		return nil, e.rejected(ctx, token, userId, location, now, entity.RejectExpired)
	}

	if token.Geofence != nil {
		if location == nil {
			return nil, e.rejected(ctx, token, userId, location, now, entity.RejectLocationRequired)
		}
		if !geo.Within(location, token.Geofence) {
			return nil, e.rejected(ctx, token, userId, location, now, entity.RejectOutOfRange)
		}
	}

	if !token.AllowMultipleScans {
		seen, err := e.alreadyScanned(ctx, token, userId, now)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, e.rejected(ctx, token, userId, location, now, entity.RejectDuplicateScan)
		}
	}

	if token.CapacityReached() {
		return nil, e.rejected(ctx, token, userId, location, now, entity.RejectCapacityReached)
	}

	scan := &entity.ScanRecord{
		TokenId:   token.Id,
		ScopeId:   token.ScopeId,
		UserId:    userId,
		ScannedAt: now,
		Location:  location,
		Result:    entity.ScanAccepted,
		SingleUse: !token.AllowMultipleScans,
	}
	record := &entity.AttendanceRecord{
		UserId:       userId,
		ScopeId:      token.ScopeId,
		Date:         clock.Day(now),
		Timestamp:    now,
		TokenId:      token.Id,
		SinglePerDay: !token.AllowMultipleScans && token.DuplicatePolicy == entity.DuplicatePerScopeDay,
	}

	updated, err := e.store.CommitScan(ctx, token.Id, scan, record)
	switch {
	case err == nil:
		e.log.With(
			slog.String("token_id", token.Id),
			slog.String("scope_id", token.ScopeId),
			slog.Int64("scan_count", updated.ScanCount),
		).Debug("scan accepted")
		return record, nil
	case errors.Is(err, entity.ErrDuplicateScan):
		// unique index fired under a concurrent scan by the same user
		return nil, e.rejected(ctx, token, userId, location, now, entity.RejectDuplicateScan)
	case errors.Is(err, entity.ErrTokenSpent):
		// the conditional update matched nothing: a concurrent commit
		// exhausted the cap or the token went inactive meanwhile
		reason := entity.RejectInactive
		if token.Limited() {
			reason = entity.RejectCapacityReached
		}
		return nil, e.rejected(ctx, token, userId, location, now, reason)
	default:
		return nil, err
	}
}

// inactiveReason reports why an inactive token is refused. Active flips
// false for three causes (expiry, capacity, explicit deactivation) and the
// answer to the scanner names the cause: an expired token keeps yielding
// Expired and a full token keeps yielding CapacityReached on every retry.
func inactiveReason(token *entity.Token, now time.Time) entity.RejectReason {
	switch {
	case token.Expired(now):
		return entity.RejectExpired
	case token.CapacityReached():
		return entity.RejectCapacityReached
	default:
		return entity.RejectInactive
	}
}

func (e *Engine) alreadyScanned(ctx context.Context, token *entity.Token, userId string, now time.Time) (bool, error) {
	switch token.DuplicatePolicy {
	case entity.DuplicatePerScopeDay:
		return e.store.AttendanceExists(ctx, userId, token.ScopeId, clock.Day(now))
	default:
		return e.store.HasAcceptedScan(ctx, token.Id, userId)
	}
}

// rejected appends the audit record for a refused attempt and returns the
// policy rejection. The append cannot fail the operation's reported error.
func (e *Engine) rejected(ctx context.Context, token *entity.Token, userId string, location *entity.Location, now time.Time, reason entity.RejectReason) error {
	scan := &entity.ScanRecord{
		TokenId:      token.Id,
		ScopeId:      token.ScopeId,
		UserId:       userId,
		ScannedAt:    now,
		Location:     location,
		Result:       entity.ScanRejected,
		RejectReason: reason,
	}
	if err := e.store.RecordScan(ctx, scan); err != nil {
		e.log.Warn("record rejected scan", slog.String("token_id", token.Id), sl.Err(err))
	}
	return reject(reason)
}
