package domain

import "encoding/json"

// OdontogramVersion is one immutable snapshot of a patient's dental chart.
type OdontogramVersion struct {
	ID                 int64   `db:"id"`
	PatientID          int64   `db:"patient_id"`
	Version            int     `db:"version"`
	Formato            string  `db:"formato"`
	FormatoNino        *string `db:"formato_nino"`
	Observaciones      *string `db:"observaciones"`
	ElementosDentarios *string `db:"elementos_dentarios"`
	CreatedAt          string  `db:"created_at"`
}

// Odontogram is the decoded view of a version returned to clients.
type Odontogram struct {
	Adult              json.RawMessage `json:"adult"`
	Child              json.RawMessage `json:"child"`
	Observaciones      string          `json:"observaciones"`
	ElementosDentarios string          `json:"elementos_dentarios"`
	Version            int             `json:"version"`
	Treatments         []Treatment     `json:"treatments"`
}
