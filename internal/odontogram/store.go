// Package odontogram stores the append-only history of a patient's dental
// chart. Every save adds a new numbered version; earlier versions are never
// modified.
package odontogram

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/database"
)

// maxAttempts bounds how often CreateVersion retries after losing a race for
// the next version number.
const maxAttempts = 3

// EmptyLayout is returned in place of a layout that is missing or unreadable.
var EmptyLayout = json.RawMessage(`{"teethState":{},"connections":[]}`)

// Recorder receives version store activity for metrics.
type Recorder interface {
	OdontogramVersionCreated()
	OdontogramVersionConflict()
}

type nopRecorder struct{}

func (nopRecorder) OdontogramVersionCreated()  {}
func (nopRecorder) OdontogramVersionConflict() {}

// Input is the chart state submitted by the client.
type Input struct {
	Adult              json.RawMessage `json:"adult"`
	Child              json.RawMessage `json:"child"`
	Observaciones      string          `json:"observaciones"`
	ElementosDentarios string          `json:"elementos_dentarios"`
}

type layout struct {
	TeethState  map[string]json.RawMessage `json:"teethState"`
	Connections []json.RawMessage          `json:"connections"`
}

// HasChildData reports whether a child layout carries anything worth
// storing: at least one tooth state or at least one connection.
func HasChildData(child json.RawMessage) bool {
	if isAbsent(child) {
		return false
	}
	var l layout
	if err := json.Unmarshal(child, &l); err != nil {
		return false
	}
	return len(l.TeethState) > 0 || len(l.Connections) > 0
}

type Store struct {
	db      *sqlx.DB
	log     *zap.Logger
	metrics Recorder
}

// New constructs a Store. rec may be nil.
func New(db *sqlx.DB, log *zap.Logger, rec Recorder) *Store {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log.Named("odontogram"), metrics: rec}
}

// CreateVersion appends the next version for the patient and returns its
// number. Versions start at 1.
func (s *Store) CreateVersion(ctx context.Context, patientID int64, in Input) (int, error) {
	var version int
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			var current int
			if err := tx.GetContext(ctx, &current, tx.Rebind(`SELECT COALESCE(MAX(version), 0) FROM odontogramas WHERE patient_id = ?`), patientID); err != nil {
				return domain.Storage("read latest version", err)
			}
			version = current + 1
			return InsertVersion(ctx, tx, patientID, version, in)
		})
		if err == nil || !database.IsUniqueViolation(err) {
			break
		}
		s.metrics.OdontogramVersionConflict()
		s.log.Warn("odontogram version taken, retrying",
			zap.Int64("patient_id", patientID),
			zap.Int("version", version),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		return 0, err
	}

	s.metrics.OdontogramVersionCreated()
	s.log.Info("odontogram version created", zap.Int64("patient_id", patientID), zap.Int("version", version))
	return version, nil
}

// InsertVersion writes one version row inside tx. The child layout is stored
// only when HasChildData reports it has content.
func InsertVersion(ctx context.Context, tx *sqlx.Tx, patientID int64, version int, in Input) error {
	adult := in.Adult
	if isAbsent(adult) {
		adult = EmptyLayout
	}
	var child *string
	if HasChildData(in.Child) {
		c := string(in.Child)
		child = &c
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO odontogramas (patient_id, version, formato, formato_nino, observaciones, elementos_dentarios) VALUES (?, ?, ?, ?, ?, ?)`),
		patientID, version, string(adult), child, nullIfEmpty(in.Observaciones), nullIfEmpty(in.ElementosDentarios))
	if err != nil {
		return domain.Storage("insert odontogram", err)
	}
	return nil
}

// Latest returns the highest version for the patient, or nil when the
// patient has no odontogram yet.
func (s *Store) Latest(ctx context.Context, patientID int64) (*domain.Odontogram, error) {
	var row domain.OdontogramVersion
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, patient_id, version, formato, formato_nino, observaciones, elementos_dentarios FROM odontogramas WHERE patient_id = ? ORDER BY version DESC LIMIT 1`), patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Storage("load odontogram", err)
	}
	return s.decode(row), nil
}

// Version returns one exact version.
func (s *Store) Version(ctx context.Context, patientID int64, version int) (*domain.Odontogram, error) {
	var row domain.OdontogramVersion
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, patient_id, version, formato, formato_nino, observaciones, elementos_dentarios FROM odontogramas WHERE patient_id = ? AND version = ?`), patientID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("odontogram version")
	}
	if err != nil {
		return nil, domain.Storage("load odontogram", err)
	}
	return s.decode(row), nil
}

// ListVersions returns the patient's version numbers, newest first.
func (s *Store) ListVersions(ctx context.Context, patientID int64) ([]int, error) {
	versions := []int{}
	err := s.db.SelectContext(ctx, &versions, s.db.Rebind(`SELECT version FROM odontogramas WHERE patient_id = ? ORDER BY version DESC`), patientID)
	if err != nil {
		return nil, domain.Storage("list odontogram versions", err)
	}
	return versions, nil
}

func (s *Store) decode(row domain.OdontogramVersion) *domain.Odontogram {
	out := &domain.Odontogram{
		Adult:      s.layoutOrEmpty(row, "formato", &row.Formato),
		Child:      s.layoutOrEmpty(row, "formato_nino", row.FormatoNino),
		Version:    row.Version,
		Treatments: []domain.Treatment{},
	}
	if row.Observaciones != nil {
		out.Observaciones = *row.Observaciones
	}
	if row.ElementosDentarios != nil {
		out.ElementosDentarios = *row.ElementosDentarios
	}
	return out
}

func (s *Store) layoutOrEmpty(row domain.OdontogramVersion, column string, stored *string) json.RawMessage {
	if stored == nil || isAbsent(json.RawMessage(*stored)) {
		return EmptyLayout
	}
	raw := json.RawMessage(*stored)
	if !json.Valid(raw) {
		s.log.Warn("malformed odontogram layout",
			zap.Int64("patient_id", row.PatientID),
			zap.Int("version", row.Version),
			zap.String("column", column))
		return EmptyLayout
	}
	return raw
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
