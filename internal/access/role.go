package access

// Role is the closed set of roles a caller can hold. The zero value means
// the role is absent (no identity).
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole decodes a raw role value read from the directory. Anything other
// than "admin" decodes to RoleUser.
func ParseRole(raw string) Role {
	if raw == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// LookupRole is the strict variant used for caller-supplied input.
func LookupRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleUser:
		return Role(raw), true
	default:
		return RoleNone, false
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// Label is the display name used by the front ends.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrador"
	case RoleUser:
		return "Usuário"
	default:
		return "-"
	}
}

// Identity is an authenticated principal issued by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}
