package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// ExecutionError is a statement that reached the data source and failed there.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, apperrors.ErrExecution) true.
func (e *ExecutionError) Is(target error) bool {
	return target == apperrors.ErrExecution
}

// Executor runs validated statements against a data source.
type Executor struct {
	rowLimit int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExecutor creates an Executor returning at most rowLimit rows per
// statement and aborting statements that run longer than timeout (zero:
// no timeout).
func NewExecutor(rowLimit int, timeout time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		rowLimit: datasource.EffectiveLimit(rowLimit),
		timeout:  timeout,
		logger:   logger.Named("executor"),
	}
}

// Execute runs query against src. The statement is validated again so that
// nothing but a single SELECT ever reaches a data source.
func (e *Executor) Execute(ctx context.Context, src datasource.QueryExecutor, query string) (*datasource.QueryResult, error) {
	query, err := sqlutil.ValidateReadOnly(query)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := src.Query(ctx, query, e.rowLimit)
	if err != nil {
		e.logger.Warn("Query failed",
			zap.String("sql", logging.SanitizeQuery(query)),
			zap.Error(err))
		return nil, &ExecutionError{SQL: query, Err: err}
	}

	e.logger.Debug("Query executed",
		zap.Int("rows", result.RowCount),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
