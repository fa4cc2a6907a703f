package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
)

// ResilientGateway wraps a Gateway with a circuit breaker, bounded retries
// and a per-attempt timeout.
type ResilientGateway struct {
	next    Gateway
	breaker *CircuitBreaker
	retry   retry.Config
	timeout time.Duration
	logger  *zap.Logger
}

// NewResilientGateway wraps next. A nil breaker disables circuit breaking and
// a zero timeout leaves deadlines to the caller's context.
func NewResilientGateway(next Gateway, breaker *CircuitBreaker, retryCfg *retry.Config, timeout time.Duration, logger *zap.Logger) *ResilientGateway {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &ResilientGateway{
		next:    next,
		breaker: breaker,
		retry:   *retryCfg,
		timeout: timeout,
		logger:  logger.Named("gateway"),
	}
}

// Complete implements Gateway.
func (g *ResilientGateway) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	op := params.Operation
	if op == "" {
		op = "complete"
	}
	start := time.Now()

	cfg := g.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.GatewayRetriesTotal.WithLabelValues(op).Inc()
		g.logger.Warn("Retrying language model call",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", logging.SanitizeError(err)))
	}

	text, err := retry.DoWithResult(ctx, &cfg, func(ctx context.Context) (string, error) {
		if g.breaker != nil {
			if err := g.breaker.Allow(); err != nil {
				return "", err
			}
		}

		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		text, err := g.next.Complete(callCtx, prompt, params)
		if err != nil {
			err = ClassifyError(err)
			if g.breaker != nil {
				g.breaker.RecordFailure()
			}
			return "", err
		}
		if g.breaker != nil {
			g.breaker.RecordSuccess()
		}
		return text, nil
	})

	metrics.GatewayCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.GatewayCallsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()

	if err != nil {
		g.logger.Error("Language model call failed",
			zap.String("operation", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return "", ClassifyError(err)
	}
	return text, nil
}
