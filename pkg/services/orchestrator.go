package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/audit"
	"github.com/ekaya-inc/ekaya-ask/pkg/cache"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/schema"
	"github.com/ekaya-inc/ekaya-ask/pkg/session"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// User-facing summaries of pipeline failures.
const (
	MsgEmptyQuestion     = "Please enter a question about your data."
	MsgNoSchema          = "The dataset's structure could not be read, so no question can be answered. Please upload the file again."
	MsgNoDataSource      = "No dataset is loaded. Please upload a file before asking questions."
	MsgGenerationFailed  = "Failed to generate SQL query. Please try rephrasing your question."
	MsgContractViolation = "The generated query was not a single read-only SELECT statement, so it was not run. Please try rephrasing your question."
	MsgExecutionFailed   = "The query could not be run against your data (%s). Please try rephrasing your question."
	MsgSummaryFailed     = "The query ran, but its results could not be summarized. Please try again."
	MsgUnexpectedFailure = "An unexpected error occurred while processing your question. Please try again."
)

// SchemaListingHeader opens the column listing of a schema request.
const SchemaListingHeader = "Here are the columns in each table:"

// SchemaFollowUps are offered with every column listing.
var SchemaFollowUps = []string{
	"Which column would you like to know more about?",
	"Would you like to see sample data from any column?",
	"Would you like to analyze any specific columns?",
}

// Resolution branches, used as metric labels.
const (
	branchCacheHit = "cache_hit"
	branchSchema   = "schema"
	branchAdvice   = "advice"
	branchAnswered = "answered"
	branchFailed   = "failed"
)

// Orchestrator turns one question into a result bundle: cache check,
// classification, then either a column listing, expert advice, or
// refine, generate, execute and summarize.
type Orchestrator struct {
	cache        *cache.Cache
	introspector *schema.Introspector
	classifier   *Classifier
	refiner      *Refiner
	generator    *SQLGenerator
	executor     *Executor
	summarizer   *Summarizer
	auditor      *audit.SecurityAuditor
	logger       *zap.Logger
}

// NewOrchestrator wires the pipeline around gateway. c may be nil to
// disable caching.
func NewOrchestrator(gateway llm.Gateway, c *cache.Cache, executor *Executor, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cache:        c,
		introspector: schema.NewIntrospector(logger),
		classifier:   NewClassifier(gateway, logger),
		refiner:      NewRefiner(gateway, logger),
		generator:    NewSQLGenerator(gateway, logger),
		executor:     executor,
		summarizer:   NewSummarizer(gateway, logger),
		auditor:      audit.NewSecurityAuditor(logger),
		logger:       logger.Named("pipeline"),
	}
}

// Describe returns the schema description of src.
func (o *Orchestrator) Describe(ctx context.Context, src datasource.SchemaExtractor) (string, error) {
	return o.introspector.Describe(ctx, src)
}

// ResolveSource describes src and resolves question against it.
func (o *Orchestrator) ResolveSource(ctx context.Context, sess *session.Context, question string, src datasource.Source) *models.ResultBundle {
	schemaText, err := o.introspector.Describe(ctx, src)
	if err != nil {
		o.logger.Error("Failed to describe data source", zap.Error(err))
		schemaText = ""
	}
	return o.Resolve(ctx, sess, question, src, schemaText)
}

// Resolve answers question against src, whose schema is schemaText. It
// always returns a bundle with a summary; failures are explained there.
// The question and bundle are recorded in sess.
func (o *Orchestrator) Resolve(ctx context.Context, sess *session.Context, question string, src datasource.QueryExecutor, schemaText string) (bundle *models.ResultBundle) {
	start := time.Now()
	branch := branchFailed
	question = strings.TrimSpace(question)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Question pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			bundle = failure(question, MsgUnexpectedFailure)
			branch = branchFailed
		}
		metrics.ResolveDuration.WithLabelValues(branch).Observe(time.Since(start).Seconds())
		sess.Record(question, bundle)
	}()

	switch {
	case question == "":
		return failure(question, MsgEmptyQuestion)
	case strings.TrimSpace(schemaText) == "":
		metrics.StageFailuresTotal.WithLabelValues("schema").Inc()
		return failure(question, MsgNoSchema)
	}

	if entry := o.lookup(ctx, question, schemaText); entry != nil {
		branch = branchCacheHit
		b := entry.Bundle()
		b.Visualization = BuildVisualization(b.Results, b.Columns)
		return b
	}

	classification := o.classifier.Classify(ctx, question, schemaText)
	switch classification.Kind {
	case models.KindSchemaRequest:
		branch = branchSchema
		return schemaBundle(question, schemaText)
	case models.KindOutOfScope:
		branch = branchAdvice
		return &models.ResultBundle{
			Question:       question,
			Classification: models.KindOutOfScope,
			Summary:        classification.Advice,
		}
	}

	if src == nil {
		return answerFailure(question, MsgNoDataSource)
	}

	b, ok := o.answer(ctx, sessionKey(sess), question, src, schemaText)
	if !ok {
		return b
	}
	branch = branchAnswered
	o.store(ctx, question, schemaText, b)
	return b
}

// answer runs the SQL branch. Follow-up suggestions are generated while
// the statement executes and is summarized.
func (o *Orchestrator) answer(ctx context.Context, sessKey, question string, src datasource.QueryExecutor, schemaText string) (*models.ResultBundle, bool) {
	refined := o.refiner.Refine(ctx, question, schemaText)

	query, err := o.generator.Generate(ctx, refined, schemaText)
	if err != nil {
		if errors.Is(err, apperrors.ErrContractViolation) {
			metrics.StageFailuresTotal.WithLabelValues("contract").Inc()
			o.auditRejection(ctx, sessKey, question, err)
			return answerFailure(question, MsgContractViolation), false
		}
		metrics.StageFailuresTotal.WithLabelValues("generate").Inc()
		o.logger.Error("SQL generation failed", zap.Error(err))
		return answerFailure(question, MsgGenerationFailed), false
	}

	var (
		followUps []string
		result    *datasource.QueryResult
		summary   string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		followUps = o.summarizer.FollowUps(gctx, question, schemaText)
		return nil
	})
	g.Go(func() error {
		res, err := o.executor.Execute(gctx, src, query)
		if err != nil {
			return err
		}
		result = res
		summary, err = o.summarizer.Summarize(gctx, query, res.Rows, res.Columns)
		return err
	})

	if err := g.Wait(); err != nil {
		var execErr *ExecutionError
		switch {
		case errors.As(err, &execErr):
			metrics.StageFailuresTotal.WithLabelValues("execute").Inc()
			return answerFailure(question, fmt.Sprintf(MsgExecutionFailed, logging.TruncateString(execErr.Err.Error(), 200))), false
		case errors.Is(err, apperrors.ErrContractViolation):
			metrics.StageFailuresTotal.WithLabelValues("contract").Inc()
			o.auditRejection(ctx, sessKey, question, err)
			return answerFailure(question, MsgContractViolation), false
		default:
			metrics.StageFailuresTotal.WithLabelValues("summarize").Inc()
			o.logger.Error("Summarization failed", zap.Error(err))
			return answerFailure(question, MsgSummaryFailed), false
		}
	}

	rows := models.Rows(result.Rows)
	return &models.ResultBundle{
		Question:        question,
		Classification:  models.KindAnswerable,
		RefinedQuestion: refined,
		SQL:             query,
		Summary:         summary,
		Visualization:   BuildVisualization(rows, result.Columns),
		FollowUps:       followUps,
		Results:         rows,
		Columns:         result.Columns,
	}, true
}

func (o *Orchestrator) auditRejection(ctx context.Context, sessKey, question string, err error) {
	var verr *sqlutil.ValidationError
	if errors.As(err, &verr) {
		o.auditor.LogRejectedSQL(ctx, sessKey, question, verr)
	}
}

func sessionKey(sess *session.Context) string {
	if sess == nil {
		return ""
	}
	return sess.Key
}

func (o *Orchestrator) lookup(ctx context.Context, question, schemaText string) *models.CacheEntry {
	if o.cache == nil {
		return nil
	}
	entry, err := o.cache.Lookup(ctx, question, schemaText)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues("cache_lookup").Inc()
		o.logger.Warn("Cache lookup failed", zap.Error(err))
		return nil
	}
	return entry
}

func (o *Orchestrator) store(ctx context.Context, question, schemaText string, b *models.ResultBundle) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Store(ctx, question, schemaText, b); err != nil {
		metrics.StageFailuresTotal.WithLabelValues("cache_store").Inc()
		o.logger.Warn("Cache store failed", zap.Error(err))
	}
}

func schemaBundle(question, schemaText string) *models.ResultBundle {
	lines := append([]string{SchemaListingHeader}, schema.Parse(schemaText).ColumnListing()...)
	return &models.ResultBundle{
		Question:       question,
		Classification: models.KindSchemaRequest,
		Summary:        strings.Join(lines, "\n"),
		FollowUps:      append([]string(nil), SchemaFollowUps...),
	}
}

func failure(question, summary string) *models.ResultBundle {
	return &models.ResultBundle{Question: question, Summary: summary, Failed: true}
}

func answerFailure(question, summary string) *models.ResultBundle {
	b := failure(question, summary)
	b.Classification = models.KindAnswerable
	return b
}
