package chat

import (
	"encoding/json"
	"strings"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps client supplied role names onto the two known roles.
// Anything that is not recognisably the assistant is treated as the user.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "assistant", "bot", "ai", "model":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Turn is one prior exchange entry in the client supplied history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON coerces unknown roles to RoleUser.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Role = ParseRole(raw.Role)
	t.Content = raw.Content
	return nil
}

// Empty reports whether the turn carries no usable text.
func (t Turn) Empty() bool {
	return strings.TrimSpace(t.Content) == ""
}
