package database

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementOperationAndTable(t *testing.T) {
	tests := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT * FROM "enrollments" WHERE id = $1`, "SELECT", "enrollments"},
		{`INSERT INTO "webhook_events" ("id") VALUES ($1)`, "INSERT", "webhook_events"},
		{`UPDATE "enrollments" SET "payment_status"=$1`, "UPDATE", "enrollments"},
		{`delete from reviews where id = 1`, "DELETE", "reviews"},
		{`  `, "UNKNOWN", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.operation, statementOperation(tt.sql), tt.sql)
		assert.Equal(t, tt.table, statementTable(tt.sql), tt.sql)
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(sql.ErrConnDone))
	assert.False(t, isConnectionError(errors.New("duplicate key value violates unique constraint")))
	assert.False(t, isConnectionError(nil))
}
