// Package clinical writes a patient's clinical record: demographics, medical
// history, consent, first odontogram and treatment history.
package clinical

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/odontogram"
)

// consentTemplate receives patient name, lastname, dni, practitioner name and
// practitioner license number.
const consentTemplate = "En este acto, yo %s %s DNI %s autorizo a Od %s M.P. %s y/o asociados o ayudantes a realizar el tratamiento informado, conversado con el profesional sobre la naturaleza y propósito del tratamiento, sobre la posibilidad de complicaciones, los riesgos y administración de anestesia local, práctica, radiografías y otros métodos de diagnóstico."

type HealthInsurance struct {
	Number   string `json:"number"`
	IsHolder bool   `json:"isHolder"`
}

// PatientData is the demographic part of a patient form.
type PatientData struct {
	Name            string          `json:"name" validate:"required"`
	Lastname        string          `json:"lastname" validate:"required"`
	DNI             string          `json:"dni" validate:"required"`
	BirthDate       string          `json:"birthDate"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	Address         string          `json:"address"`
	Occupation      string          `json:"occupation"`
	HealthInsurance HealthInsurance `json:"healthInsurance"`
}

// Normalize trims the identifying fields in place.
func (p *PatientData) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Lastname = strings.TrimSpace(p.Lastname)
	p.DNI = strings.TrimSpace(p.DNI)
}

// Patient maps the form onto the stored patient row.
func (p PatientData) Patient(userID int64) domain.Patient {
	return domain.Patient{
		UserID:          userID,
		Name:            p.Name,
		Lastname:        p.Lastname,
		DNI:             p.DNI,
		Birthdate:       nullIfEmpty(p.BirthDate),
		Tel:             p.Phone,
		Email:           p.Email,
		Address:         p.Address,
		Occupation:      p.Occupation,
		AffiliateNumber: p.HealthInsurance.Number,
		Holder:          p.HealthInsurance.IsHolder,
	}
}

// AnamnesisData is the medical-history questionnaire as the client sends it.
type AnamnesisData struct {
	PrimaryDoctor      string `json:"primaryDoctor"`
	PrimaryDoctorPhone string `json:"primaryDoctorPhone"`
	PrimaryService     string `json:"primaryService"`
	Allergies          struct {
		HasAllergies bool   `json:"hasAllergies"`
		Description  string `json:"description"`
	} `json:"allergies"`
	CurrentTreatment struct {
		UnderTreatment bool `json:"underTreatment"`
	} `json:"currentTreatment"`
	Hospitalization struct {
		WasHospitalized bool   `json:"wasHospitalized"`
		Reason          string `json:"reason"`
	} `json:"hospitalization"`
	HealingProblems   bool            `json:"healingProblems"`
	BloodType         string          `json:"bloodType"`
	BloodRh           string          `json:"bloodRh"`
	IsPregnant        bool            `json:"isPregnant"`
	PregnancyTime     string          `json:"pregnancyTime"`
	Obstetrician      string          `json:"obstetrician"`
	ObstetricianPhone string          `json:"obstetricianPhone"`
	TakesMedication   bool            `json:"takesMedication"`
	Medication        string          `json:"medication"`
	Diseases          json.RawMessage `json:"diseases"`
	Observations      string          `json:"observations"`
}

// Anamnesis maps the questionnaire onto the stored row. Absent diseases are
// stored as an empty list.
func (a AnamnesisData) Anamnesis(patientID int64) domain.Anamnesis {
	antecedentes := "[]"
	if d := strings.TrimSpace(string(a.Diseases)); d != "" && d != "null" {
		antecedentes = d
	}
	return domain.Anamnesis{
		PatientID:               patientID,
		Alergico:                a.Allergies.HasAllergies,
		MedicoCabecera:          nullIfEmpty(a.PrimaryDoctor),
		MedicoTel:               nullIfEmpty(a.PrimaryDoctorPhone),
		ServicioCabecera:        nullIfEmpty(a.PrimaryService),
		AlergiasDescripcion:     nullIfEmpty(a.Allergies.Description),
		TratamientoMedico:       a.CurrentTreatment.UnderTreatment,
		HospitalizadoUltimoAnio: a.Hospitalization.WasHospitalized,
		HospitalizacionMotivo:   nullIfEmpty(a.Hospitalization.Reason),
		ProblemasCicatrizacion:  a.HealingProblems,
		GrupoSanguineo:          nullIfEmpty(a.BloodType),
		RH:                      nullIfEmpty(a.BloodRh),
		Embarazada:              a.IsPregnant,
		TiempoGestacional:       nullIfEmpty(a.PregnancyTime),
		Obstetra:                nullIfEmpty(a.Obstetrician),
		ObstetraTel:             nullIfEmpty(a.ObstetricianPhone),
		Medicamento:             a.TakesMedication,
		MedicamentoDetalles:     nullIfEmpty(a.Medication),
		Antecedentes:            antecedentes,
		Observaciones:           nullIfEmpty(a.Observations),
	}
}

// ConsentData carries the practitioner details for the consent text.
type ConsentData struct {
	DoctorName      string `json:"doctorName"`
	DoctorMatricula string `json:"doctorMatricula"`
	Datetime        string `json:"datetime"`
	Accepted        bool   `json:"accepted"`
}

// ConsentText renders the informed-consent paragraph for a patient.
func ConsentText(p PatientData, c ConsentData) string {
	doctor := strings.TrimSpace(c.DoctorName)
	if doctor == "" {
		doctor = "No especificado"
	}
	license := strings.TrimSpace(c.DoctorMatricula)
	if license == "" {
		license = "No especificada"
	}
	return fmt.Sprintf(consentTemplate, p.Name, p.Lastname, p.DNI, doctor, license)
}

// TreatmentInput is one clinical procedure entry.
type TreatmentInput struct {
	Date          string `json:"date"`
	Code          string `json:"code"`
	ToothElements string `json:"tooth_elements"`
	Faces         string `json:"faces"`
	Observations  string `json:"observations"`
}

// OdontogramData is the initial chart together with the treatments drawn on
// it.
type OdontogramData struct {
	odontogram.Input
	Treatments []TreatmentInput `json:"treatments"`
}

// CompletePatientRequest is everything captured by the new-patient form.
type CompletePatientRequest struct {
	PatientData     PatientData    `json:"patientData"`
	AnamnesisData   AnamnesisData  `json:"anamnesisData"`
	ConsentData     ConsentData    `json:"consentData"`
	OdontogramaData OdontogramData `json:"odontogramaData"`
}

// treatmentDate keeps only the calendar day of ISO timestamps and leaves
// anything else untouched.
func treatmentDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) > 10 {
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			day := s[:10]
			return &day
		}
	}
	return &s
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
