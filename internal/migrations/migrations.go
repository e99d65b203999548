package migrations

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"dentalclinic/m/internal/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id {{pk}},
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            name TEXT NOT NULL,
            lastname TEXT NOT NULL,
            tuition TEXT NOT NULL DEFAULT '',
            created_at {{ts}}
        );`,
	`CREATE TABLE IF NOT EXISTS patients (
            id {{pk}},
            user_id INTEGER NOT NULL REFERENCES users(id),
            name TEXT NOT NULL,
            lastname TEXT NOT NULL,
            dni TEXT NOT NULL,
            birthdate TEXT,
            tel TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            occupation TEXT NOT NULL DEFAULT '',
            affiliate_number TEXT NOT NULL DEFAULT '',
            holder BOOLEAN NOT NULL DEFAULT FALSE,
            created_at {{ts}}
        );`,
	`CREATE INDEX IF NOT EXISTS idx_patients_user ON patients(user_id);`,
	`CREATE TABLE IF NOT EXISTS anamnesis_answers (
            id {{pk}},
            patient_id INTEGER NOT NULL UNIQUE REFERENCES patients(id) ON DELETE CASCADE,
            alergico BOOLEAN NOT NULL DEFAULT FALSE,
            medico_cabecera TEXT,
            medico_tel TEXT,
            servicio_cabecera TEXT,
            alergias_descripcion TEXT,
            tratamiento_medico BOOLEAN NOT NULL DEFAULT FALSE,
            hospitalizado_ultimo_anio BOOLEAN NOT NULL DEFAULT FALSE,
            hospitalizacion_motivo TEXT,
            problemas_cicatrizacion BOOLEAN NOT NULL DEFAULT FALSE,
            grupo_sanguineo TEXT,
            rh TEXT,
            embarazada BOOLEAN NOT NULL DEFAULT FALSE,
            tiempo_gestacional TEXT,
            obstetra TEXT,
            obstetra_tel TEXT,
            medicamento BOOLEAN NOT NULL DEFAULT FALSE,
            medicamento_detalles TEXT,
            antecedentes TEXT NOT NULL DEFAULT '[]',
            observaciones TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS consents (
            id {{pk}},
            patient_id INTEGER NOT NULL UNIQUE REFERENCES patients(id) ON DELETE CASCADE,
            text TEXT NOT NULL,
            datetime TEXT NOT NULL,
            accepted BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE TABLE IF NOT EXISTS treatments (
            id {{pk}},
            patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
            date TEXT,
            code TEXT,
            tooth_elements TEXT,
            faces TEXT,
            observations TEXT
        );`,
	`CREATE INDEX IF NOT EXISTS idx_treatments_patient ON treatments(patient_id);`,
	`CREATE TABLE IF NOT EXISTS odontogramas (
            id {{pk}},
            patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
            version INTEGER NOT NULL CHECK (version >= 1),
            formato TEXT NOT NULL,
            formato_nino TEXT,
            observaciones TEXT,
            elementos_dentarios TEXT,
            created_at {{ts}},
            UNIQUE(patient_id, version)
        );`,
	`CREATE TABLE IF NOT EXISTS treatment_budgets (
            id {{pk}},
            patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
            treatment TEXT NOT NULL,
            total {{money}} NOT NULL,
            pending {{money}} NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE
        );`,
	`CREATE TABLE IF NOT EXISTS payments (
            id {{pk}},
            treatment_budget_id INTEGER NOT NULL REFERENCES treatment_budgets(id) ON DELETE CASCADE,
            payment_date TEXT NOT NULL,
            amount_paid {{money}} NOT NULL CHECK (amount_paid > 0),
            payment_method TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE
        );`,
	`CREATE INDEX IF NOT EXISTS idx_payments_budget ON payments(treatment_budget_id);`,
	`CREATE TABLE IF NOT EXISTS shifts (
            id {{pk}},
            user_id INTEGER NOT NULL REFERENCES users(id),
            name TEXT NOT NULL,
            datetime TEXT NOT NULL,
            dni TEXT,
            type TEXT NOT NULL DEFAULT '',
            status BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE TABLE IF NOT EXISTS treatment_catalog (
            id {{pk}},
            name TEXT NOT NULL UNIQUE,
            created_at {{ts}}
        );`,
}

// Run creates the database schema required by the clinic backend. Every
// statement is idempotent.
func Run(db *sqlx.DB) error {
	for _, stmt := range Statements(database.IsPostgres(db)) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Statements renders the schema for the given dialect.
func Statements(postgres bool) []string {
	replacer := strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "DATETIME DEFAULT CURRENT_TIMESTAMP",
		"{{money}}", "NUMERIC(12,2)",
	)
	if postgres {
		replacer = strings.NewReplacer(
			"{{pk}}", "SERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ DEFAULT NOW()",
			"{{money}}", "NUMERIC(12,2)",
		)
	}
	out := make([]string, len(schema))
	for i, stmt := range schema {
		out[i] = replacer.Replace(stmt)
	}
	return out
}
