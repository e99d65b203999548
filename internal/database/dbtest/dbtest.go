// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"dentalclinic/m/internal/database"
	"dentalclinic/m/internal/migrations"
)

// Open returns a fresh migrated SQLite database that is closed when the test
// ends.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "consultorio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

// User inserts a practitioner and returns its id.
func User(t *testing.T, db *sqlx.DB, email string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowx(`INSERT INTO users (email, password_hash, name, lastname) VALUES (?, 'x', 'Ana', 'Paz') RETURNING id`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

// Patient inserts a patient owned by userID and returns its id.
func Patient(t *testing.T, db *sqlx.DB, userID int64, dni string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowx(`INSERT INTO patients (user_id, name, lastname, dni) VALUES (?, 'Juan', 'Perez', ?) RETURNING id`, userID, dni).Scan(&id)
	require.NoError(t, err)
	return id
}

// Count returns the number of rows in table.
func Count(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}
