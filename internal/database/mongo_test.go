package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"qrpass/entity"
)

func TestOpError(t *testing.T) {
	m := &MongoDB{}

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, m.opError("op", nil))
	})

	t.Run("no documents maps to not found", func(t *testing.T) {
		assert.ErrorIs(t, m.opError("get token", mongo.ErrNoDocuments), entity.ErrNotFound)
	})

	t.Run("duplicate key maps to duplicate scan", func(t *testing.T) {
		dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
		assert.ErrorIs(t, m.opError("commit scan", dup), entity.ErrDuplicateScan)
	})

	t.Run("deadline maps to storage unavailable", func(t *testing.T) {
		assert.ErrorIs(t, m.opError("get token", context.DeadlineExceeded), entity.ErrStorageUnavailable)
	})

	t.Run("write conflict maps to storage unavailable", func(t *testing.T) {
		conflict := mongo.CommandError{Code: 112, Name: "WriteConflict", Message: "write conflict"}
		err := m.opError("commit scan", conflict)
		assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
		assert.False(t, errors.Is(err, entity.ErrDuplicateScan))
	})

	t.Run("plain errors stay themselves", func(t *testing.T) {
		plain := errors.New("decode failed")
		err := m.opError("op", plain)
		assert.ErrorIs(t, err, plain)
		assert.False(t, errors.Is(err, entity.ErrStorageUnavailable))
	})
}
