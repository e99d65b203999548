package domain

type Patient struct {
	ID              int64   `db:"id" json:"id"`
	UserID          int64   `db:"user_id" json:"user_id"`
	Name            string  `db:"name" json:"name"`
	Lastname        string  `db:"lastname" json:"lastname"`
	DNI             string  `db:"dni" json:"dni"`
	Birthdate       *string `db:"birthdate" json:"birthdate"`
	Tel             string  `db:"tel" json:"tel"`
	Email           string  `db:"email" json:"email"`
	Address         string  `db:"address" json:"address"`
	Occupation      string  `db:"occupation" json:"occupation"`
	AffiliateNumber string  `db:"affiliate_number" json:"affiliate_number"`
	Holder          bool    `db:"holder" json:"holder"`
	CreatedAt       string  `db:"created_at" json:"created_at,omitempty"`
}

// Anamnesis is the medical-history questionnaire, at most one per patient.
type Anamnesis struct {
	ID                      int64   `db:"id" json:"id"`
	PatientID               int64   `db:"patient_id" json:"patient_id"`
	Alergico                bool    `db:"alergico" json:"alergico"`
	MedicoCabecera          *string `db:"medico_cabecera" json:"medico_cabecera"`
	MedicoTel               *string `db:"medico_tel" json:"medico_tel"`
	ServicioCabecera        *string `db:"servicio_cabecera" json:"servicio_cabecera"`
	AlergiasDescripcion     *string `db:"alergias_descripcion" json:"alergias_descripcion"`
	TratamientoMedico       bool    `db:"tratamiento_medico" json:"tratamiento_medico"`
	HospitalizadoUltimoAnio bool    `db:"hospitalizado_ultimo_anio" json:"hospitalizado_ultimo_anio"`
	HospitalizacionMotivo   *string `db:"hospitalizacion_motivo" json:"hospitalizacion_motivo"`
	ProblemasCicatrizacion  bool    `db:"problemas_cicatrizacion" json:"problemas_cicatrizacion"`
	GrupoSanguineo          *string `db:"grupo_sanguineo" json:"grupo_sanguineo"`
	RH                      *string `db:"rh" json:"rh"`
	Embarazada              bool    `db:"embarazada" json:"embarazada"`
	TiempoGestacional       *string `db:"tiempo_gestacional" json:"tiempo_gestacional"`
	Obstetra                *string `db:"obstetra" json:"obstetra"`
	ObstetraTel             *string `db:"obstetra_tel" json:"obstetra_tel"`
	Medicamento             bool    `db:"medicamento" json:"medicamento"`
	MedicamentoDetalles     *string `db:"medicamento_detalles" json:"medicamento_detalles"`
	Antecedentes            string  `db:"antecedentes" json:"antecedentes"`
	Observaciones           *string `db:"observaciones" json:"observaciones"`
}

type Consent struct {
	ID        int64  `db:"id" json:"id"`
	PatientID int64  `db:"patient_id" json:"patient_id"`
	Text      string `db:"text" json:"text"`
	Datetime  string `db:"datetime" json:"datetime"`
	Accepted  bool   `db:"accepted" json:"accepted"`
}

// Treatment is one clinical procedure entry recorded against a patient.
type Treatment struct {
	ID            int64   `db:"id" json:"id"`
	PatientID     int64   `db:"patient_id" json:"patient_id"`
	Date          *string `db:"date" json:"date"`
	Code          *string `db:"code" json:"code"`
	ToothElements *string `db:"tooth_elements" json:"tooth_elements"`
	Faces         *string `db:"faces" json:"faces"`
	Observations  *string `db:"observations" json:"observations"`
}
