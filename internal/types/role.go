package types

import "encoding/json"

// Role is a group room member's role. The numeric ordering is
// meaningful: Owner > Manager > Member.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleManager
	RoleOwner
)

var roleNames = map[Role]string{
	RoleMember:  "member",
	RoleManager: "manager",
	RoleOwner:   "owner",
}

func (r Role) String() string {
	return roleNames[r]
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole returns the role named by s, or RoleNone and false for an
// unrecognized name.
func ParseRole(s string) (Role, bool) {
	for role, name := range roleNames {
		if name == s {
			return role, true
		}
	}
	return RoleNone, false
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// an unknown role unmarshals as RoleNone and is rejected
	// by validation at the service boundary
	role, _ := ParseRole(s)
	*r = role
	return nil
}
