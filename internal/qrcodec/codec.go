// Package qrcodec encodes attendance tokens into the opaque string embedded
// in a rendered QR image and recovers token references from scanned text.
//
// The payload is a compact HS256 JWT: jti carries the token id, private
// claims carry the scope id and a per-token nonce. The signature makes the
// payload self-contained — a forged or edited string fails verification
// without any storage lookup. Decoding is pure parsing plus the signature
// check; validity windows are the redemption engine's concern, so claim
// time validation is disabled on parse.
package qrcodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"qrpass/entity"
)

// ErrMalformed covers every decode failure: bad structure, unknown
// algorithm, signature mismatch, missing claims.
var ErrMalformed = errors.New("malformed qr payload")

type payloadClaims struct {
	jwt.RegisteredClaims
	ScopeId string `json:"scope_id"`
	Nonce   string `json:"nonce"`
}

type Codec struct {
	secret []byte
	issuer string
}

func New(secret, issuer string) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 16 {
		return nil, fmt.Errorf("signing secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	return &Codec{secret: []byte(secret), issuer: issuer}, nil
}

// Encode produces the opaque QR string for a token.
func (c *Codec) Encode(t *entity.Token) (string, error) {
	if t.Id == "" || t.Nonce == "" {
		return "", fmt.Errorf("token id and nonce are required")
	}
	claims := payloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			ID:        t.Id,
			IssuedAt:  jwt.NewNumericDate(t.CreatedAt),
			NotBefore: jwt.NewNumericDate(t.ValidFrom),
			ExpiresAt: jwt.NewNumericDate(t.ValidUntil),
		},
		ScopeId: t.ScopeId,
		Nonce:   t.Nonce,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return signed, nil
}

// Decode parses and verifies a scanned payload. It never touches storage
// and never checks the validity window.
func (c *Codec) Decode(raw string) (*entity.TokenRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformed
	}

	var claims payloadClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.ID == "" || claims.Nonce == "" {
		return nil, fmt.Errorf("%w: missing token reference", ErrMalformed)
	}
	if claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrMalformed)
	}

	return &entity.TokenRef{
		Id:      claims.ID,
		ScopeId: claims.ScopeId,
		Nonce:   claims.Nonce,
	}, nil
}
