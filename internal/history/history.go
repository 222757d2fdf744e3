// Package history converts role-tagged conversations into the backend's
// native message representation.
package history

import (
	"github.com/chatgate-dev/chatgate/internal/backend/azopenai"
	"github.com/chatgate-dev/chatgate/internal/domain"
)

// Build maps each message to its backend equivalent. Unrecognized roles are
// treated as user messages.
func Build(conv domain.Conversation) []azopenai.ChatMessage {
	out := make([]azopenai.ChatMessage, 0, len(conv))
	for _, m := range conv {
		role := m.Role
		switch role {
		case domain.RoleSystem, domain.RoleAssistant, domain.RoleUser:
		default:
			role = domain.RoleUser
		}
		out = append(out, azopenai.ChatMessage{Role: role, Content: m.Content})
	}
	return out
}
