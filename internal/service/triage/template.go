package triage

import "strings"

// symptomToken 是问题文案中唯一支持的占位符。
const symptomToken = "{{SYMPTOM}}"

// renderQuestion substitutes the first {{SYMPTOM}} occurrence with the user's
// own prior utterance, verbatim. No escaping, no recursive substitution; text
// without the token passes through unchanged.
func renderQuestion(text, symptom string) string {
	return strings.Replace(text, symptomToken, symptom, 1)
}
