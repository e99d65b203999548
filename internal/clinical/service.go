package clinical

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/database"
	"dentalclinic/m/internal/odontogram"
	"dentalclinic/m/internal/validate"
)

// Recorder receives clinical record activity for metrics.
type Recorder interface {
	CompletePatientSaved()
}

type nopRecorder struct{}

func (nopRecorder) CompletePatientSaved() {}

type Service struct {
	db      *sqlx.DB
	log     *zap.Logger
	metrics Recorder
	now     func() time.Time
}

// New constructs a Service. rec may be nil.
func New(db *sqlx.DB, log *zap.Logger, rec Recorder) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log.Named("clinical"), metrics: rec, now: time.Now}
}

const insertAnamnesis = `INSERT INTO anamnesis_answers (patient_id, alergico, medico_cabecera, medico_tel, servicio_cabecera, alergias_descripcion, tratamiento_medico, hospitalizado_ultimo_anio, hospitalizacion_motivo, problemas_cicatrizacion, grupo_sanguineo, rh, embarazada, tiempo_gestacional, obstetra, obstetra_tel, medicamento, medicamento_detalles, antecedentes, observaciones)
        VALUES (:patient_id, :alergico, :medico_cabecera, :medico_tel, :servicio_cabecera, :alergias_descripcion, :tratamiento_medico, :hospitalizado_ultimo_anio, :hospitalizacion_motivo, :problemas_cicatrizacion, :grupo_sanguineo, :rh, :embarazada, :tiempo_gestacional, :obstetra, :obstetra_tel, :medicamento, :medicamento_detalles, :antecedentes, :observaciones)`

const updateAnamnesis = `UPDATE anamnesis_answers SET alergico = :alergico, medico_cabecera = :medico_cabecera, medico_tel = :medico_tel, servicio_cabecera = :servicio_cabecera, alergias_descripcion = :alergias_descripcion, tratamiento_medico = :tratamiento_medico, hospitalizado_ultimo_anio = :hospitalizado_ultimo_anio, hospitalizacion_motivo = :hospitalizacion_motivo, problemas_cicatrizacion = :problemas_cicatrizacion, grupo_sanguineo = :grupo_sanguineo, rh = :rh, embarazada = :embarazada, tiempo_gestacional = :tiempo_gestacional, obstetra = :obstetra, obstetra_tel = :obstetra_tel, medicamento = :medicamento, medicamento_detalles = :medicamento_detalles, antecedentes = :antecedentes, observaciones = :observaciones
        WHERE patient_id = :patient_id`

// SaveCompletePatient creates a patient together with its anamnesis, consent,
// first odontogram version and any treatments, all in one transaction. Name,
// lastname and dni are checked before anything is written. The returned
// patient echoes the request with the new id.
func (s *Service) SaveCompletePatient(ctx context.Context, userID int64, req CompletePatientRequest) (*domain.Patient, error) {
	req.PatientData.Normalize()
	if err := validate.Struct(req.PatientData); err != nil {
		return nil, err
	}

	patient := req.PatientData.Patient(userID)
	consent := domain.Consent{
		Text:     ConsentText(req.PatientData, req.ConsentData),
		Datetime: req.ConsentData.Datetime,
		Accepted: req.ConsentData.Accepted,
	}
	if consent.Datetime == "" {
		consent.Datetime = s.now().UTC().Format(time.RFC3339)
	}

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := insertPatient(ctx, tx, patient)
		if err != nil {
			return err
		}
		patient.ID = id

		if _, err := tx.NamedExecContext(ctx, insertAnamnesis, req.AnamnesisData.Anamnesis(id)); err != nil {
			return domain.Storage("insert anamnesis", err)
		}

		consent.PatientID = id
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO consents (patient_id, text, datetime, accepted) VALUES (?, ?, ?, ?)`),
			id, consent.Text, consent.Datetime, consent.Accepted)
		if err != nil {
			return domain.Storage("insert consent", err)
		}

		if err := odontogram.InsertVersion(ctx, tx, id, 1, req.OdontogramaData.Input); err != nil {
			return err
		}

		return insertTreatments(ctx, tx, id, req.OdontogramaData.Treatments)
	})
	if err != nil {
		s.log.Error("complete patient not saved", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.metrics.CompletePatientSaved()
	s.log.Info("complete patient saved",
		zap.Int64("user_id", userID),
		zap.Int64("patient_id", patient.ID),
		zap.Int("treatments", len(req.OdontogramaData.Treatments)))
	return &patient, nil
}

// ReplaceTreatments swaps the patient's whole treatment history for rows.
func (s *Service) ReplaceTreatments(ctx context.Context, patientID int64, rows []TreatmentInput) error {
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM treatments WHERE patient_id = ?`), patientID); err != nil {
			return domain.Storage("delete treatments", err)
		}
		return insertTreatments(ctx, tx, patientID, rows)
	})
	if err != nil {
		s.log.Error("treatments not replaced", zap.Int64("patient_id", patientID), zap.Error(err))
		return err
	}
	s.log.Info("treatments replaced", zap.Int64("patient_id", patientID), zap.Int("rows", len(rows)))
	return nil
}

// SaveAnamnesis inserts or replaces the patient's questionnaire.
func (s *Service) SaveAnamnesis(ctx context.Context, patientID int64, data AnamnesisData) (*domain.Anamnesis, error) {
	row := data.Anamnesis(patientID)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM anamnesis_answers WHERE patient_id = ?`), patientID); err != nil {
			return domain.Storage("load anamnesis", err)
		}
		stmt := insertAnamnesis
		if exists > 0 {
			stmt = updateAnamnesis
		}
		if _, err := tx.NamedExecContext(ctx, stmt, row); err != nil {
			return domain.Storage("save anamnesis", err)
		}
		return tx.GetContext(ctx, &row.ID, tx.Rebind(`SELECT id FROM anamnesis_answers WHERE patient_id = ?`), patientID)
	})
	if err != nil {
		return nil, domain.Storage("save anamnesis", err)
	}
	return &row, nil
}

func insertPatient(ctx context.Context, tx *sqlx.Tx, p domain.Patient) (int64, error) {
	var id int64
	err := tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO patients (user_id, name, lastname, dni, birthdate, tel, email, address, occupation, affiliate_number, holder) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		p.UserID, p.Name, p.Lastname, p.DNI, p.Birthdate, p.Tel, p.Email, p.Address, p.Occupation, p.AffiliateNumber, p.Holder).Scan(&id)
	if err != nil {
		return 0, domain.Storage("insert patient", err)
	}
	return id, nil
}

func insertTreatments(ctx context.Context, tx *sqlx.Tx, patientID int64, rows []TreatmentInput) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO treatments (patient_id, date, code, tooth_elements, faces, observations) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return domain.Storage("prepare treatment insert", err)
	}
	defer stmt.Close()

	for _, t := range rows {
		_, err := stmt.ExecContext(ctx, patientID, treatmentDate(t.Date), nullIfEmpty(t.Code), nullIfEmpty(t.ToothElements), nullIfEmpty(t.Faces), nullIfEmpty(t.Observations))
		if err != nil {
			return domain.Storage("insert treatment", err)
		}
	}
	return nil
}
