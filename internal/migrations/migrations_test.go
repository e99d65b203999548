package migrations

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentalclinic/m/internal/database"
)

func TestStatements_Dialects(t *testing.T) {
	for _, stmt := range Statements(true) {
		assert.NotContains(t, stmt, "AUTOINCREMENT")
		assert.NotContains(t, stmt, "{{")
	}
	for _, stmt := range Statements(false) {
		assert.NotContains(t, stmt, "SERIAL")
		assert.NotContains(t, stmt, "{{")
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	db, err := database.Connect(filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Run(db))
	require.NoError(t, Run(db))

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	assert.Equal(t, strings.Fields("anamnesis_answers consents odontogramas patients payments shifts treatment_budgets treatment_catalog treatments users"), tables)
}
