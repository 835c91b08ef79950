package domain

import "strings"

// Privilege is the closed set of actor roles.
type Privilege string

const (
	PrivilegeUser    Privilege = "USER"
	PrivilegeManager Privilege = "MANAGER"
	PrivilegeAdmin   Privilege = "ADMIN"
)

// ParsePrivilege canonicalizes a role label.
func ParsePrivilege(value string) (Privilege, bool) {
	switch label := Privilege(strings.ToUpper(strings.TrimSpace(value))); label {
	case PrivilegeUser, PrivilegeManager, PrivilegeAdmin:
		return label, true
	default:
		return "", false
	}
}

// Actor is an authenticated caller with a resolved privilege.
type Actor struct {
	ID        string
	Privilege Privilege
}

// Elevated reports whether the actor may approve, reject, and edit assets
// directly.
func (a Actor) Elevated() bool {
	return a.Privilege == PrivilegeManager || a.Privilege == PrivilegeAdmin
}

// Validate ensures the actor carries an id and a known privilege.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return invalidInput("actor id is required")
	}
	if _, ok := ParsePrivilege(string(a.Privilege)); !ok {
		return invalidInput("actor privilege is invalid")
	}
	return nil
}
