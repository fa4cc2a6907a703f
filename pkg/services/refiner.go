package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/prompts"
)

// Refiner restates questions in the schema's own terms.
type Refiner struct {
	gateway llm.Gateway
	logger  *zap.Logger
}

// NewRefiner creates a Refiner.
func NewRefiner(gateway llm.Gateway, logger *zap.Logger) *Refiner {
	return &Refiner{gateway: gateway, logger: logger.Named("refiner")}
}

// Refine returns the refined question, or question itself when the model
// fails or returns nothing.
func (r *Refiner) Refine(ctx context.Context, question, schema string) string {
	refined, err := r.gateway.Complete(ctx, prompts.BuildRefinementPrompt(question, schema), llm.Params{
		Operation:   "refine",
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		r.logger.Warn("Refinement failed, using original question", zap.Error(err))
		return question
	}

	refined = strings.TrimSpace(refined)
	if refined == "" {
		return question
	}

	r.logger.Debug("Refined question",
		zap.String("question", logging.SanitizeText(question)),
		zap.String("refined", logging.SanitizeText(refined)))
	return refined
}
