package entity

import (
	"net/http"
	"time"

	"qrpass/lib/validate"
)

// IssueRequest is the issuance boundary input. ValidFrom defaults to now;
// the validity window is ValidityHours from there unless ValidUntil is
// given explicitly. MaxScans zero (or omitted) means unlimited.
type IssueRequest struct {
	ScopeId            string          `json:"scope_id" validate:"required,min=1,max=64"`
	ValidityHours      float64         `json:"validity_hours" validate:"omitempty,gt=0,lte=8760"`
	ValidFrom          time.Time       `json:"valid_from,omitempty"`
	ValidUntil         time.Time       `json:"valid_until,omitempty"`
	MaxScans           int64           `json:"max_scans,omitempty" validate:"omitempty,min=1"`
	AllowMultipleScans bool            `json:"allow_multiple_scans,omitempty"`
	DuplicatePolicy    DuplicatePolicy `json:"duplicate_policy,omitempty" validate:"omitempty,oneof=per_token per_scope_day"`
	Geofence           *Geofence       `json:"geofence,omitempty"`
}

func (r *IssueRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// Window resolves the validity window against the given current time.
func (r *IssueRequest) Window(now time.Time) (from, until time.Time) {
	from = r.ValidFrom
	if from.IsZero() {
		from = now
	}
	until = r.ValidUntil
	if until.IsZero() && r.ValidityHours > 0 {
		until = from.Add(time.Duration(r.ValidityHours * float64(time.Hour)))
	}
	return from, until
}
