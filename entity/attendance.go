package entity

import "time"

// AttendanceRecord is derived 1:1 from an accepted scan. Date is the UTC
// calendar date (YYYY-MM-DD) of the scan; together with UserId and ScopeId
// it keys the one-record-per-day rule for single-scan tokens. SinglePerDay
// marks records written under the per_scope_day duplicate policy: the
// store's partial unique index on (scope_id, user_id, date) covers exactly
// those documents, so two racing commits of different tokens can never
// register the same user twice for one scope and day.
type AttendanceRecord struct {
	UserId       string    `json:"user_id" bson:"user_id"`
	ScopeId      string    `json:"scope_id" bson:"scope_id"`
	Date         string    `json:"date" bson:"date"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
	TokenId      string    `json:"token_id" bson:"token_id"`
	SinglePerDay bool      `json:"-" bson:"single_per_day"`
}

// AttendanceQuery filters the ledger. At least one of UserId/ScopeId must
// be set; the date range is optional and inclusive.
type AttendanceQuery struct {
	UserId  string
	ScopeId string
	From    time.Time
	To      time.Time
}
