package rbac

import "strings"

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}

// Directory maps verified emails to roles. With no editor list configured
// every signed-in account may edit.
type Directory struct {
	admins  map[string]struct{}
	editors map[string]struct{}
}

func NewDirectory(admins, editors []string) Directory {
	d := Directory{admins: toSet(admins)}
	if len(editors) > 0 {
		d.editors = toSet(editors)
	}
	return d
}

func (d Directory) RoleFor(email string) Role {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := d.admins[email]; ok {
		return RoleAdmin
	}
	if d.editors == nil {
		return RoleEditor
	}
	if _, ok := d.editors[email]; ok {
		return RoleEditor
	}
	return RoleViewer
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
