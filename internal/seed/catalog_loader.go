package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// LoadTreatmentCatalog ingests the CSV into the treatment_catalog table,
// ignoring names that are already present. The first column of each row is
// the treatment name; the first row is a header. A missing file is not an
// error.
func LoadTreatmentCatalog(db *sqlx.DB, csvPath string, log *zap.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("treatment catalog not found, skipping seed", zap.String("path", csvPath))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open treatment catalog: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("read treatment catalog header: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("begin treatment catalog seed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(tx.Rebind(`INSERT INTO treatment_catalog (name) VALUES (?) ON CONFLICT (name) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("prepare treatment catalog insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("unable to read treatment catalog row", zap.Error(err))
			continue
		}
		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}
		res, err := stmt.Exec(name)
		if err != nil {
			log.Warn("unable to insert treatment name", zap.String("name", name), zap.Error(err))
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit treatment catalog seed: %w", err)
	}
	log.Info("seeded treatment catalog", zap.Int("rows", rows), zap.String("path", csvPath))
	return rows, nil
}
