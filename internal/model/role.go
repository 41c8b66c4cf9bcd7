package model

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleManager   Role = "manager"
	RoleDoctor    Role = "doctor"
	RoleSecretary Role = "secretary"
)

var roles = map[string]Role{
	"manager":   RoleManager,
	"doctor":    RoleDoctor,
	"secretary": RoleSecretary,
}

// ParseRole is the only place a role string from the outside world turns
// into a Role. Matching ignores case and surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r, ok := roles[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roles[string(r)]
	return ok
}

func (r Role) String() string {
	return string(r)
}

type UserStatus string

const (
	UserStatusAvailable   UserStatus = "available"
	UserStatusOnBreak     UserStatus = "onBreak"
	UserStatusWithPatient UserStatus = "withPatient"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID   int64
	Email    string
	Role     Role
	DoctorID *int64
}

func (a Actor) IsDoctor() bool {
	return a.Role == RoleDoctor
}

// HasDoctorProfile reports whether a doctor actor is linked to a Doctor row.
func (a Actor) HasDoctorProfile() bool {
	return a.DoctorID != nil
}
