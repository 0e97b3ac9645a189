package chat

// Role is the canonical message role vocabulary. Backend-specific role
// enums never leave the provider adapters; they are derived from this one
// at the adapter boundary.
type Role int

const (
	// RoleSystem carries instructions that guide the model's behavior.
	RoleSystem Role = iota
	// RoleDeveloper carries developer/admin context (provider-specific).
	RoleDeveloper
	// RoleUser is user input.
	RoleUser
	// RoleAssistant is a model reply.
	RoleAssistant
	// RoleTool holds results from tool/function calls.
	RoleTool
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleDeveloper:
		return "developer"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return "user"
	}
}

// ParseRole maps a stored role string back to a Role. Unknown strings fall
// back to RoleUser so a damaged row never aborts a chat load.
func ParseRole(s string) Role {
	switch s {
	case "system":
		return RoleSystem
	case "developer":
		return RoleDeveloper
	case "assistant":
		return RoleAssistant
	case "tool":
		return RoleTool
	default:
		return RoleUser
	}
}
