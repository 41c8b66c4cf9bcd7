package model

type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Role         Role       `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	Timestamps
}

func (u *User) FullName() string {
	return fullName(u.FirstName, u.LastName)
}
