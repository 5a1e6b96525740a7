package entity

import "sort"

// Role is a department role held by an actor.
type Role string

const (
	RoleAdministrador       Role = "administrador"
	RoleGerenteComercial    Role = "gerente_comercial"
	RoleComercial           Role = "comercial"
	RoleProducao            Role = "producao"
	RoleFinanceiro          Role = "financeiro"
	RolePMEngenharia        Role = "pm_engenharia"
	RoleComprador           Role = "comprador"
	RolePlanejador          Role = "planejador"
	RoleBroker              Role = "broker"
	RoleDiretorComercial    Role = "diretor_comercial"
	RoleBackofficeComercial Role = "backoffice_comercial"
)

// AllRoles lists every role known to the application.
var AllRoles = []Role{
	RoleAdministrador,
	RoleGerenteComercial,
	RoleComercial,
	RoleProducao,
	RoleFinanceiro,
	RolePMEngenharia,
	RoleComprador,
	RolePlanejador,
	RoleBroker,
	RoleDiretorComercial,
	RoleBackofficeComercial,
}

var validRoles = func() map[Role]bool {
	m := make(map[Role]bool, len(AllRoles))
	for _, r := range AllRoles {
		m[r] = true
	}
	return m
}()

// IsValid returns true if the role is one of the known roles
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// RoleSet is the set of roles held by one actor.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles, dropping unknown values.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.IsValid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// ParseRoleSet builds a set from raw role names, dropping unknown values.
func ParseRoleSet(names ...string) RoleSet {
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		roles = append(roles, Role(n))
	}
	return NewRoleSet(roles...)
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether the set contains at least one of the roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles sorted by name.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
