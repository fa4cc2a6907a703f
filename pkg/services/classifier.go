package services

import (
	"context"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/prompts"
)

// ClassificationErrorMessage is the advice returned when the model cannot
// be reached.
const ClassificationErrorMessage = "I apologize, but I encountered an error processing your question. Could you please rephrase it?"

// schemaKeywords mark questions about the structure of the data.
var schemaKeywords = map[string]struct{}{
	"column":    {},
	"field":     {},
	"header":    {},
	"attribute": {},
	"schema":    {},
	"structure": {},
}

// IsSchemaQuestion reports whether question mentions a schema keyword.
// Matching is per word, case-insensitive, and accepts plurals.
func IsSchemaQuestion(question string) bool {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := schemaKeywords[w]; ok {
			return true
		}
		if _, ok := schemaKeywords[inflection.Singular(w)]; ok {
			return true
		}
	}
	return false
}

// Classifier decides which branch of the pipeline answers a question.
type Classifier struct {
	gateway llm.Gateway
	logger  *zap.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(gateway llm.Gateway, logger *zap.Logger) *Classifier {
	return &Classifier{gateway: gateway, logger: logger.Named("classifier")}
}

// Classify never fails: when the model is unavailable the question is
// answered with ClassificationErrorMessage.
func (c *Classifier) Classify(ctx context.Context, question, schema string) models.Classification {
	if IsSchemaQuestion(question) {
		metrics.ClassificationsTotal.WithLabelValues(string(models.KindSchemaRequest)).Inc()
		return models.SchemaRequest()
	}

	reply, err := c.gateway.Complete(ctx, prompts.BuildClassificationPrompt(question, schema), llm.Params{
		Operation:   "classify",
		System:      prompts.ClassifierSystem,
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		c.logger.Error("Classification failed",
			zap.String("question", logging.SanitizeText(question)),
			zap.Error(err))
		metrics.ClassificationsTotal.WithLabelValues("error").Inc()
		return models.OutOfScope(ClassificationErrorMessage)
	}

	reply = strings.TrimSpace(reply)
	if strings.EqualFold(reply, prompts.AnswerableSentinel) {
		metrics.ClassificationsTotal.WithLabelValues(string(models.KindAnswerable)).Inc()
		return models.Answerable()
	}

	metrics.ClassificationsTotal.WithLabelValues(string(models.KindOutOfScope)).Inc()
	return models.OutOfScope(reply)
}
