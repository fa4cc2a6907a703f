package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/prompts"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// SQLGenerator turns refined questions into validated read-only SQL.
type SQLGenerator struct {
	gateway llm.Gateway
	logger  *zap.Logger
}

// NewSQLGenerator creates a SQLGenerator.
func NewSQLGenerator(gateway llm.Gateway, logger *zap.Logger) *SQLGenerator {
	return &SQLGenerator{gateway: gateway, logger: logger.Named("sqlgen")}
}

// Generate returns a single SELECT statement. Model failures match
// apperrors.ErrGeneration; output that is not a single read-only SELECT is
// a *sqlutil.ValidationError matching apperrors.ErrContractViolation.
func (g *SQLGenerator) Generate(ctx context.Context, question, schema string) (string, error) {
	text, err := g.gateway.Complete(ctx, prompts.BuildSQLPrompt(question, schema), llm.Params{
		Operation:   "generate_sql",
		Temperature: 0,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	query, err := sqlutil.ValidateReadOnly(text)
	if err != nil {
		g.logger.Warn("Rejected generated SQL",
			zap.String("sql", logging.SanitizeQuery(text)),
			zap.Error(err))
		return "", err
	}

	g.logger.Debug("Generated SQL", zap.String("sql", logging.SanitizeQuery(query)))
	return query, nil
}
