package domain

type User struct {
	ID        int64  `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"-" db:"password_hash"`
	Name      string `json:"name" db:"name"`
	Lastname  string `json:"lastname" db:"lastname"`
	Tuition   string `json:"tuition" db:"tuition"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}
