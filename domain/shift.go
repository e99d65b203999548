package domain

// Shift is an appointment on the practitioner's calendar. Datetime is kept
// exactly as submitted, without timezone conversion.
type Shift struct {
	ID       int64   `db:"id" json:"id"`
	UserID   int64   `db:"user_id" json:"user_id"`
	Name     string  `db:"name" json:"name"`
	Datetime string  `db:"datetime" json:"datetime"`
	DNI      *string `db:"dni" json:"dni"`
	Type     string  `db:"type" json:"type"`
	Status   bool    `db:"status" json:"status"`
}

// CatalogEntry is a treatment name offered when building budgets.
type CatalogEntry struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
