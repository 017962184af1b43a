package qrcodec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrpass/entity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testToken() *entity.Token {
	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return &entity.Token{
		Id:         "tok-1",
		Nonce:      "nonce-1",
		ScopeId:    "org-42",
		IssuerId:   "admin-7",
		CreatedAt:  created,
		ValidFrom:  created,
		ValidUntil: created.Add(time.Hour),
	}
}

func TestNew(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := New("too-short", "qrpass")
		require.Error(t, err)
	})

	t.Run("rejects empty issuer", func(t *testing.T) {
		_, err := New(testSecret, "")
		require.Error(t, err)
	})
}

func TestRoundTrip(t *testing.T) {
	codec, err := New(testSecret, "qrpass")
	require.NoError(t, err)

	token := testToken()
	payload, err := codec.Encode(token)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	ref, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, token.Id, ref.Id)
	assert.Equal(t, token.ScopeId, ref.ScopeId)
	assert.Equal(t, token.Nonce, ref.Nonce)
}

func TestDecodeTampered(t *testing.T) {
	codec, err := New(testSecret, "qrpass")
	require.NoError(t, err)

	payload, err := codec.Encode(testToken())
	require.NoError(t, err)

	// flipping any single character must break the signature check
	for _, pos := range []int{0, len(payload) / 3, len(payload) / 2, len(payload) - 1} {
		mutated := []byte(payload)
		if mutated[pos] == 'A' {
			mutated[pos] = 'B'
		} else {
			mutated[pos] = 'A'
		}
		_, err = codec.Decode(string(mutated))
		require.Error(t, err, "position %d", pos)
		assert.True(t, errors.Is(err, ErrMalformed))
	}
}

func TestDecodeWrongKey(t *testing.T) {
	codec, err := New(testSecret, "qrpass")
	require.NoError(t, err)
	other, err := New("ffffffffffffffffffffffffffffffff", "qrpass")
	require.NoError(t, err)

	payload, err := codec.Encode(testToken())
	require.NoError(t, err)

	_, err = other.Decode(payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecodeWrongIssuer(t *testing.T) {
	signer, err := New(testSecret, "someone-else")
	require.NoError(t, err)
	codec, err := New(testSecret, "qrpass")
	require.NoError(t, err)

	payload, err := signer.Encode(testToken())
	require.NoError(t, err)

	_, err = codec.Decode(payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecodeGarbage(t *testing.T) {
	codec, err := New(testSecret, "qrpass")
	require.NoError(t, err)

	for _, raw := range []string{"", "   ", "not-a-token", "a.b", "a.b.c.d"} {
		_, err = codec.Decode(raw)
		require.Error(t, err, "raw %q", raw)
		assert.True(t, errors.Is(err, ErrMalformed))
	}
}

func TestEncodeRequiresIdentity(t *testing.T) {
	codec, err := New(testSecret, "qrpass")
	require.NoError(t, err)

	token := testToken()
	token.Nonce = ""
	_, err = codec.Encode(token)
	require.Error(t, err)
}
