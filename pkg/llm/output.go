package llm

import (
	"regexp"
	"strings"
)

// Reasoning models served behind OpenAI-compatible endpoints prepend their
// chain of thought in <think> tags.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// CleanCompletion strips a leading <think> block and surrounding whitespace.
func CleanCompletion(text string) string {
	return strings.TrimSpace(thinkTagPattern.ReplaceAllString(text, ""))
}
