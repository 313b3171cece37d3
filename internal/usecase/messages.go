package usecase

import "a2ui-agent/internal/domain"

// buildMessages replays the usable history turns and appends the reinforced
// query as the final user message. Turns with an unknown role or empty
// content are skipped; dropped reports how many.
func buildMessages(query string, history []domain.Turn) (msgs []domain.ChatMessage, dropped int) {
	msgs = make([]domain.ChatMessage, 0, len(history)+1)
	for _, t := range history {
		role := turnRole(t)
		if t.Content == "" || (role != domain.RoleUser && role != domain.RoleAssistant) {
			dropped++
			continue
		}
		msgs = append(msgs, domain.ChatMessage{Role: role, Content: t.Content})
	}

	msgs = append(msgs, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: reinforceQuery(query),
	})
	return msgs, dropped
}

// turnRole treats a turn without a role as a user turn.
func turnRole(t domain.Turn) string {
	if t.Role == "" {
		return domain.RoleUser
	}
	return t.Role
}
