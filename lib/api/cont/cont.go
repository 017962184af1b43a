package cont

import (
	"context"

	"qrpass/entity"
)

type ctxKey string

const IdentityKey ctxKey = "identity"

func PutIdentity(c context.Context, identity *entity.Identity) context.Context {
	return context.WithValue(c, IdentityKey, *identity)
}

func GetIdentity(c context.Context) *entity.Identity {
	identity, ok := c.Value(IdentityKey).(entity.Identity)
	if !ok {
		return &entity.Identity{}
	}
	return &identity
}
