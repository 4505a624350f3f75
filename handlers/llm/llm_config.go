package llm

import "fmt"

const DefaultMaxTokens = 200

// ReplyOptions shapes a single reply. Zero fields take the defaults.
type ReplyOptions struct {
	SystemPrompt string
	Language     string
	ContextData  string
	MaxTokens    int
}

func (o ReplyOptions) withDefaults() ReplyOptions {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// LanguageName maps a BCP-47 code to the language named in the instructions.
// Unknown codes fall back to English.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return DefaultLanguage
}

// BuildSystemInstruction renders the system message sent ahead of the history.
func BuildSystemInstruction(opts ReplyOptions) string {
	opts = opts.withDefaults()
	instruction := opts.SystemPrompt + fmt.Sprintf(instructionsTemplate, opts.Language)
	if opts.ContextData != "" {
		instruction += contextDataHeader + opts.ContextData
	}
	return instruction
}
