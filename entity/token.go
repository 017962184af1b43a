package entity

import "time"

// DuplicatePolicy selects the scope of the duplicate-scan check.
// The source systems used both flavours, so it is an explicit setting
// rather than a hard-coded rule.
type DuplicatePolicy string

const (
	// DuplicatePerToken rejects a second accepted scan by the same user
	// against the same token.
	DuplicatePerToken DuplicatePolicy = "per_token"
	// DuplicatePerScopeDay rejects a second accepted scan by the same user
	// for the same scope on the same UTC calendar date, whatever token
	// was scanned.
	DuplicatePerScopeDay DuplicatePolicy = "per_scope_day"
)

func (p DuplicatePolicy) Valid() bool {
	return p == DuplicatePerToken || p == DuplicatePerScopeDay
}

// Geofence is a circular area the reported scan location must fall within.
type Geofence struct {
	Lat          float64 `json:"lat" bson:"lat" validate:"min=-90,max=90"`
	Lng          float64 `json:"lng" bson:"lng" validate:"min=-180,max=180"`
	RadiusMeters float64 `json:"radius_meters" bson:"radius_meters" validate:"required,gt=0"`
}

// Token is the signed, time-bounded credential behind a rendered QR code.
// Owned by the token store; mutated only by issuance (create/deactivate)
// and by the redemption commit (scan_count increment, active flip).
type Token struct {
	Id                 string          `json:"id" bson:"_id"`
	Nonce              string          `json:"-" bson:"nonce"`
	ScopeId            string          `json:"scope_id" bson:"scope_id"`
	IssuerId           string          `json:"issuer_id" bson:"issuer_id"`
	CreatedAt          time.Time       `json:"created_at" bson:"created_at"`
	ValidFrom          time.Time       `json:"valid_from" bson:"valid_from"`
	ValidUntil         time.Time       `json:"valid_until" bson:"valid_until"`
	MaxScans           int64           `json:"max_scans,omitempty" bson:"max_scans"`
	AllowMultipleScans bool            `json:"allow_multiple_scans" bson:"allow_multiple_scans"`
	DuplicatePolicy    DuplicatePolicy `json:"duplicate_policy" bson:"duplicate_policy"`
	Geofence           *Geofence       `json:"geofence,omitempty" bson:"geofence,omitempty"`
	Active             bool            `json:"active" bson:"active"`
	ScanCount          int64           `json:"scan_count" bson:"scan_count"`
}

// Limited reports whether the token carries a scan cap.
// MaxScans == 0 means unlimited.
func (t *Token) Limited() bool {
	return t.MaxScans > 0
}

func (t *Token) CapacityReached() bool {
	return t.Limited() && t.ScanCount >= t.MaxScans
}

func (t *Token) NotYetValid(now time.Time) bool {
	return now.Before(t.ValidFrom)
}

func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ValidUntil)
}

// TokenRef is what the codec recovers from a scanned payload: enough to
// locate the stored token and prove the payload was not forged. The nonce
// must match the stored one before the reference is trusted.
type TokenRef struct {
	Id      string
	ScopeId string
	Nonce   string
}

// IssuedToken is the issuance result returned to the administrator:
// the persisted token plus the opaque string to embed in the QR image.
type IssuedToken struct {
	Token     *Token `json:"token"`
	QrPayload string `json:"qr_payload"`
}
