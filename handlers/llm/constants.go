package llm

const DefaultSystemPrompt = "You are a helpful and knowledgeable teacher named Deepak. You are mentoring a student."

const DefaultLanguage = "English"

// instructionsTemplate is appended to the system prompt; %s is the reply language.
const instructionsTemplate = `

CRITICAL INSTRUCTIONS:
1. ALWAYS reply in %s. Use perfect grammar and natural phrasing.
2. If the user asks a general knowledge or academic question, answer it accurately and concisely.
3. Use the provided STUDENT DATA ONLY if the user asks something personal about themselves.
4. Keep answers under 3 sentences.`

const contextDataHeader = "\n\nSTUDENT DATA (Use only if relevant to the question):\n"

var languageNames = map[string]string{
	"en-US": "English",
	"en-GB": "English",
	"hi-IN": "Hindi",
	"mr-IN": "Marathi",
	"es-ES": "Spanish",
	"fr-FR": "French",
	"de-DE": "German",
	"ja-JP": "Japanese",
	"zh-CN": "Chinese",
}

var providerLabels = map[string]string{
	"mistral": "Mistral AI",
	"openai":  "OpenAI",
	"groq":    "Groq",
}

// failureMessage names the chat provider that failed a turn.
func failureMessage(provider string) string {
	label, ok := providerLabels[provider]
	if !ok {
		label = provider
	}
	return label + " failed"
}
