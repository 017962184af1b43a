package entity

import "time"

type ScanResult string

const (
	ScanAccepted ScanResult = "accepted"
	ScanRejected ScanResult = "rejected"
)

// RejectReason is the user-facing outcome of a refused redemption.
// These are expected results, not system errors; the caller maps each
// to a message.
type RejectReason string

const (
	RejectMalformedCode    RejectReason = "malformed_code"
	RejectUnknownToken     RejectReason = "unknown_token"
	RejectInactive         RejectReason = "inactive"
	RejectNotYetValid      RejectReason = "not_yet_valid"
	RejectExpired          RejectReason = "expired"
	RejectLocationRequired RejectReason = "location_required"
	RejectOutOfRange       RejectReason = "out_of_range"
	RejectDuplicateScan    RejectReason = "duplicate_scan"
	RejectCapacityReached  RejectReason = "capacity_reached"
)

// Location is a scan's reported position.
type Location struct {
	Lat float64 `json:"lat" bson:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" bson:"lng" validate:"min=-180,max=180"`
}

// ScanRecord is the audit entry for one redemption attempt. Append-only;
// rejections are recorded too. SingleUse marks accepted scans of tokens
// that forbid repeat scans: the store's partial unique index on
// (token_id, user_id) covers exactly those documents.
type ScanRecord struct {
	TokenId      string       `json:"token_id" bson:"token_id"`
	ScopeId      string       `json:"scope_id" bson:"scope_id"`
	UserId       string       `json:"user_id" bson:"user_id"`
	ScannedAt    time.Time    `json:"scanned_at" bson:"scanned_at"`
	Location     *Location    `json:"location,omitempty" bson:"location,omitempty"`
	Result       ScanResult   `json:"result" bson:"result"`
	RejectReason RejectReason `json:"reject_reason,omitempty" bson:"reject_reason,omitempty"`
	SingleUse    bool         `json:"-" bson:"single_use"`
}
