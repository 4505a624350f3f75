package core

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// Turn is one entry of a session's conversation history.
type Turn struct {
	Role    LLMMessageRole `json:"role"`
	Content string         `json:"content"`
}

func UserTurn(content string) Turn {
	return Turn{Role: LLMMessageRoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: LLMMessageRoleAssistant, Content: content}
}

func SystemTurn(content string) Turn {
	return Turn{Role: LLMMessageRoleSystem, Content: content}
}

// Valid reports whether the role is one a history may hold.
func (r LLMMessageRole) Valid() bool {
	switch r {
	case LLMMessageRoleUser, LLMMessageRoleAssistant, LLMMessageRoleSystem:
		return true
	default:
		return false
	}
}
