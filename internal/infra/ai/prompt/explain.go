package prompt

import (
	"fmt"
	"strings"
)

// ExplainSystemPrompt fixes the tone and format of topic explanations.
func ExplainSystemPrompt() string {
	return `You are a friendly programming tutor explaining one concept to a beginner.
Rules:
- Answer in 50 to 60 words.
- Use plain sentences. No headings, no bullet lists, no bold or italics.
- Inline code with single backticks is allowed. A short fenced code block is allowed when an example helps.`
}

// ExplainUserPrompt builds the request for one topic. levelName and framework
// are optional and only added when present.
func ExplainUserPrompt(topic, levelName, language string, framework *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain %q", topic)
	if levelName != "" {
		fmt.Fprintf(&b, " in the context of %s", levelName)
	}
	if framework != nil && *framework != "" {
		fmt.Fprintf(&b, " using %s", *framework)
	}
	if language != "" {
		fmt.Fprintf(&b, " in %s", language)
	}
	b.WriteString(".")
	return b.String()
}
