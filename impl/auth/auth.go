package auth

import (
	"context"
	"fmt"

	"qrpass/entity"
)

// Database resolves a pre-provisioned API token to an identity claim.
type Database interface {
	GetIdentity(ctx context.Context, token string) (*entity.Identity, error)
}

type Auth struct {
	db Database
}

func New(db Database) *Auth {
	return &Auth{db: db}
}

func (a Auth) IdentityByToken(ctx context.Context, token string) (*entity.Identity, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return a.db.GetIdentity(ctx, token)
}
