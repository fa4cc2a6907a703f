package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/prompts"
)

// NoResultsMessage is the summary of an empty result.
const NoResultsMessage = "No results found for this query."

// MaxFollowUps bounds the suggested follow-up questions.
const MaxFollowUps = 3

// Summarizer writes the narrative summary and follow-up suggestions.
type Summarizer struct {
	gateway llm.Gateway
	logger  *zap.Logger
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(gateway llm.Gateway, logger *zap.Logger) *Summarizer {
	return &Summarizer{gateway: gateway, logger: logger.Named("summarizer")}
}

// Summarize describes the result of query. Empty results get
// NoResultsMessage without a model call.
func (s *Summarizer) Summarize(ctx context.Context, query string, rows []map[string]any, columns []string) (string, error) {
	if len(rows) == 0 {
		return NoResultsMessage, nil
	}

	summary, err := s.gateway.Complete(ctx, prompts.BuildSummaryPrompt(query, rows, columns), llm.Params{
		Operation:   "summarize",
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err != nil {
		return "", fmt.Errorf("summarize results: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// FollowUps suggests at most MaxFollowUps questions. It returns an empty
// list when the model fails.
func (s *Summarizer) FollowUps(ctx context.Context, question, schema string) []string {
	text, err := s.gateway.Complete(ctx, prompts.BuildFollowUpPrompt(question, schema), llm.Params{
		Operation:   "follow_ups",
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if err != nil {
		s.logger.Warn("Follow-up generation failed", zap.Error(err))
		return []string{}
	}
	return ParseFollowUps(text)
}

// ParseFollowUps splits a reply into trimmed non-blank lines, keeping the
// first MaxFollowUps.
func ParseFollowUps(text string) []string {
	out := make([]string, 0, MaxFollowUps)
	for _, line := range strings.Split(text, "\n") {
		if len(out) == MaxFollowUps {
			break
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
