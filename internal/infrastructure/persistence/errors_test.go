package persistence

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Run("matches a pq unique violation", func(t *testing.T) {
		err := &pq.Error{Code: pgUniqueViolation, Constraint: "idx_orders_tenant_number"}
		assert.True(t, isUniqueViolation(err, "idx_orders_tenant_number"))
	})

	t.Run("any constraint matches when none is named", func(t *testing.T) {
		err := &pq.Error{Code: pgUniqueViolation, Constraint: "idx_tokens_tenant_code"}
		assert.True(t, isUniqueViolation(err, ""))
	})

	t.Run("different constraint does not match", func(t *testing.T) {
		err := &pq.Error{Code: pgUniqueViolation, Constraint: "idx_tokens_tenant_code"}
		assert.False(t, isUniqueViolation(err, "idx_orders_tenant_number"))
	})

	t.Run("other pq codes do not match", func(t *testing.T) {
		err := &pq.Error{Code: "23503", Constraint: "idx_orders_tenant_number"}
		assert.False(t, isUniqueViolation(err, "idx_orders_tenant_number"))
	})

	t.Run("wrapped pq errors are unwrapped", func(t *testing.T) {
		inner := &pq.Error{Code: pgUniqueViolation, Constraint: "idx_orders_tenant_number"}
		err := errors.Join(errors.New("save failed"), inner)
		assert.True(t, isUniqueViolation(err, "idx_orders_tenant_number"))
	})

	t.Run("text fallback catches unwrapped driver messages", func(t *testing.T) {
		err := errors.New(`ERROR: duplicate key value violates unique constraint "idx_orders_tenant_number"`)
		assert.True(t, isUniqueViolation(err, "idx_orders_tenant_number"))
	})

	t.Run("unrelated errors do not match", func(t *testing.T) {
		assert.False(t, isUniqueViolation(errors.New("connection reset"), ""))
	})
}
