// Package access decides what each role may see and change.
//
// A Scope is resolved once per request from the actor and the entity being
// touched, and every list, get and mutation downstream consumes it instead
// of branching on the role again.
package access

import (
	"github.com/jwalitptl/clinic-api/internal/model"
)

type Level string

const (
	LevelNone  Level = "none"
	LevelFull  Level = "full"
	LevelOwn   Level = "own"
	LevelBasic Level = "basic"
)

type Entity string

const (
	Patients       Entity = "patients"
	Appointments   Entity = "appointments"
	Medications    Entity = "medications"
	Doctors        Entity = "doctors"
	MedicalRecords Entity = "medical_records"
	Billing        Entity = "billing"
)

const ProfileNotConfiguredMessage = "Your doctor profile is not set up. Please contact the administrator to complete your doctor profile setup."

var policy = map[Entity]map[model.Role]Level{
	Patients:       {model.RoleManager: LevelFull, model.RoleDoctor: LevelOwn, model.RoleSecretary: LevelBasic},
	Appointments:   {model.RoleManager: LevelFull, model.RoleDoctor: LevelOwn, model.RoleSecretary: LevelFull},
	Medications:    {model.RoleManager: LevelFull, model.RoleDoctor: LevelFull, model.RoleSecretary: LevelNone},
	Doctors:        {model.RoleManager: LevelFull, model.RoleDoctor: LevelFull, model.RoleSecretary: LevelFull},
	MedicalRecords: {model.RoleManager: LevelFull, model.RoleDoctor: LevelOwn, model.RoleSecretary: LevelNone},
	Billing:        {model.RoleManager: LevelFull, model.RoleDoctor: LevelNone, model.RoleSecretary: LevelBasic},
}

// Roles allowed to create, edit or deactivate each entity. Doctors with own
// access are further limited to their own rows.
var writers = map[Entity]map[model.Role]bool{
	Patients:       {model.RoleManager: true, model.RoleSecretary: true},
	Appointments:   {model.RoleManager: true, model.RoleDoctor: true, model.RoleSecretary: true},
	Medications:    {model.RoleManager: true},
	Doctors:        {model.RoleManager: true},
	MedicalRecords: {model.RoleManager: true, model.RoleDoctor: true},
	Billing:        {model.RoleManager: true, model.RoleSecretary: true},
}

// Resolve returns the access level a role has on an entity type. Unknown
// roles and entities resolve to none.
func Resolve(role model.Role, entity Entity) Level {
	byRole, ok := policy[entity]
	if !ok {
		return LevelNone
	}
	level, ok := byRole[role]
	if !ok {
		return LevelNone
	}
	return level
}

// CanWrite reports whether a role may mutate rows of the entity at all.
func CanWrite(role model.Role, entity Entity) bool {
	return writers[entity][role]
}

// Scope is the typed access descriptor for one actor on one entity.
type Scope struct {
	Entity         Entity
	Role           model.Role
	Level          Level
	DoctorID       int64
	ProfileMissing bool
}

// ScopeFor resolves the scope of an actor. A doctor with own access but no
// linked profile gets a scope that matches nothing and flags ProfileMissing.
func ScopeFor(actor model.Actor, entity Entity) Scope {
	s := Scope{
		Entity: entity,
		Role:   actor.Role,
		Level:  Resolve(actor.Role, entity),
	}
	if s.Level == LevelOwn {
		if actor.DoctorID == nil {
			s.ProfileMissing = true
		} else {
			s.DoctorID = *actor.DoctorID
		}
	}
	return s
}

// Empty reports whether the scope can never yield a row.
func (s Scope) Empty() bool {
	return s.Level == LevelNone || s.ProfileMissing
}

// OwnerFilter is the doctor id a store query should narrow by, if any.
func (s Scope) OwnerFilter() *int64 {
	if s.Level != LevelOwn || s.ProfileMissing {
		return nil
	}
	id := s.DoctorID
	return &id
}

func (s Scope) CanWrite() bool {
	return !s.ProfileMissing && CanWrite(s.Role, s.Entity)
}
