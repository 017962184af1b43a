package entity

import (
	"time"

	"github.com/biter777/countries"
)

type ScopeKind string

const (
	ScopeOrganization ScopeKind = "organization"
	ScopeSession      ScopeKind = "session"
)

// Scope is an organization or session record from the external directory.
// The attendance core references scopes by id only; this struct exists so
// the boundary can verify a scope and resolve session ownership.
type Scope struct {
	Id             string    `json:"id"`
	Kind           ScopeKind `json:"kind"`
	Name           string    `json:"name"`
	Country        string    `json:"country,omitempty"`
	OrganizationId string    `json:"organization_id,omitempty"`
	StartsAt       time.Time `json:"starts_at,omitempty"`
	EndsAt         time.Time `json:"ends_at,omitempty"`
}

// OwnerOrganization returns the organization an admin must belong to in
// order to manage this scope. For organizations that is the scope itself.
func (s *Scope) OwnerOrganization() string {
	if s.Kind == ScopeSession && s.OrganizationId != "" {
		return s.OrganizationId
	}
	return s.Id
}

// CountryCode normalizes the directory's free-form country value to an
// ISO alpha-2 code. Returns empty when the value is not recognized.
func (s *Scope) CountryCode() string {
	if s.Country == "" {
		return ""
	}
	if len(s.Country) == 2 {
		return s.Country
	}
	country := countries.ByName(s.Country)
	code := country.Alpha2()
	if len(code) == 2 {
		return code
	}
	return ""
}
