package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConn(t *testing.T) {
	tests := []struct {
		in      string
		dialect Dialect
		dsn     string
	}{
		{"postgres://u:p@localhost/db", Postgres, "postgres://u:p@localhost/db"},
		{"postgresql://u:p@localhost/db", Postgres, "postgresql://u:p@localhost/db"},
		{"sqlite://data/attendance.db", SQLite, "data/attendance.db"},
		{"attendance.db", SQLite, "attendance.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dialect, dsn := parseConn(tt.in)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM attendance WHERE employee_id = ? AND occurred_at >= ? AND occurred_at < ?"

	pg := &DB{Dialect: Postgres}
	assert.Equal(t,
		"SELECT id FROM attendance WHERE employee_id = $1 AND occurred_at >= $2 AND occurred_at < $3",
		pg.Rebind(q))

	lite := &DB{Dialect: SQLite}
	assert.Equal(t, q, lite.Rebind(q))
}

func TestNewDBCreatesSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "attendance.db")

	db, err := NewDB(ctx, "sqlite://"+path)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.Healthy(ctx))
	for _, table := range []string{"employees", "attendance", "admins"} {
		var name string
		err := db.Client.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	// Reopening must not fail on the existing schema.
	again, err := NewDB(ctx, "sqlite://"+path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, filepath.Join(t.TempDir(), "fk.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Client.ExecContext(ctx,
		`INSERT INTO attendance (employee_id, occurred_at, status) VALUES (?, CURRENT_TIMESTAMP, 'Present')`, 42)
	assert.Error(t, err)
}
