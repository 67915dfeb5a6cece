// Package stream drains an ordered ledger event source into the projector.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/wandeoki/afritrace/internal/ledger/event"
	"github.com/wandeoki/afritrace/internal/ledger/projection"
	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

// Source yields ledger events in (blockNumber, txIndex, logIndex) order.
// Next blocks until an event is available, the context is canceled, or the
// stream ends. A finished source returns io.EOF.
type Source interface {
	Next(ctx context.Context) (event.Envelope, error)
}

// Stats counts what the runner has done so far.
type Stats struct {
	Applied    uint64
	Duplicates uint64
	Skipped    uint64
}

// Runner drives a projector from a source until the source is drained or the
// context is canceled. It is single-use and not safe for concurrent Run calls.
type Runner struct {
	source      Source
	projector   *projection.Projector
	logger      *log.Logger
	idleTimeout time.Duration

	stats   Stats
	last    event.Envelope
	hasLast bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger used for progress output.
func WithRunnerLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithIdleTimeout bounds how long the runner waits for the next event. A
// source that stays silent past the timeout ends the run with an error.
func WithIdleTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.idleTimeout = d }
}

// NewRunner builds a runner over a source and projector.
func NewRunner(source Source, projector *projection.Projector, opts ...RunnerOption) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("event source is required")
	}
	if projector == nil {
		return nil, fmt.Errorf("projector is required")
	}

	r := &Runner{
		source:    source,
		projector: projector,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Stats returns a snapshot of the run counters.
func (r *Runner) Stats() Stats {
	return r.stats
}

// Run drains the source. It returns nil when the source reports io.EOF and
// the context error when canceled. An ordering regression that is not a
// redelivery of an already committed event aborts the run.
func (r *Runner) Run(ctx context.Context) error {
	for {
		env, err := r.next(ctx)
		if errors.Is(err, io.EOF) {
			r.logger.Printf("event stream drained applied=%d duplicates=%d skipped=%d",
				r.stats.Applied, r.stats.Duplicates, r.stats.Skipped)
			return nil
		}
		if err != nil {
			return err
		}

		if err := r.checkOrder(ctx, env); err != nil {
			return err
		}

		res, err := r.projector.Apply(ctx, env)
		if err != nil {
			return err
		}
		switch {
		case res.Duplicate:
			r.stats.Duplicates++
		case res.Skipped:
			r.stats.Skipped++
		case res.Applied:
			r.stats.Applied++
		}

		if !r.hasLast || r.last.Before(env) {
			r.last = env
			r.hasLast = true
		}
	}
}

func (r *Runner) next(ctx context.Context) (event.Envelope, error) {
	if r.idleTimeout <= 0 {
		return r.source.Next(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.idleTimeout)
	defer cancel()
	env, err := r.source.Next(waitCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return event.Envelope{}, fmt.Errorf("event source idle for %s: %w", r.idleTimeout, err)
	}
	return env, err
}

// checkOrder enforces forward ledger order. A backward jump is tolerated only
// when the occurrence was already committed, which is how at-least-once
// sources replay after a restart.
func (r *Runner) checkOrder(ctx context.Context, env event.Envelope) error {
	if !r.hasLast || !env.Before(r.last) {
		return nil
	}

	seen, err := r.projector.IsSeen(ctx, env.TxHash, env.LogIndex)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeEventOutOfOrder,
		fmt.Sprintf("event %s/%d arrived after block %d", env.TxHash, env.LogIndex, r.last.BlockNumber),
		map[string]string{
			"tx_hash":    env.TxHash,
			"event_kind": string(env.Kind),
		})
}
