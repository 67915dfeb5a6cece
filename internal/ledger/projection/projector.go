package projection

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wandeoki/afritrace/internal/ledger/event"
	"github.com/wandeoki/afritrace/internal/ledger/storage"
	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

// Result reports what the projector did with one envelope.
type Result struct {
	// Applied is true when the event mutated the read model in this call.
	Applied bool
	// Duplicate is true when the occurrence was committed by an earlier call.
	Duplicate bool
	// Skipped is true when a lenient projector dropped a rejected event.
	Skipped bool
}

// Projector applies ledger events to the read model exactly once per
// occurrence. It is the single writer; callers must not apply concurrently.
type Projector struct {
	db     storage.TxRunner
	strict bool
	logger *log.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a Projector.
type Option func(*Projector)

// WithStrict makes rejected events (dangling references, invalid offset
// amounts) fatal instead of logged and skipped.
func WithStrict() Option {
	return func(p *Projector) { p.strict = true }
}

// WithLogger sets the logger used for skip warnings.
func WithLogger(logger *log.Logger) Option {
	return func(p *Projector) { p.logger = logger }
}

// WithClock overrides the wall clock used for applied-at stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Projector) { p.now = now }
}

// New builds a projector over the given transactional stores.
func New(db storage.TxRunner, opts ...Option) (*Projector, error) {
	if db == nil {
		return nil, apperrors.New(apperrors.CodeStorageFailure, "transaction runner is required")
	}
	if err := db.Stores().Validate(); err != nil {
		return nil, err
	}

	p := &Projector{
		db:     db,
		logger: log.Default(),
		now:    time.Now,
		tracer: otel.Tracer("ledger/projection"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// IsSeen reports whether the event occurrence has already been committed.
func (p *Projector) IsSeen(ctx context.Context, txHash string, logIndex uint32) (bool, error) {
	return p.db.Stores().Applied.Seen(ctx, txHash, logIndex)
}

// Apply projects one envelope into the read model.
//
// A redelivered occurrence returns Result{Duplicate: true} without touching
// storage. A rejected event (dangling reference, invalid offset amount) is an
// error in strict mode; otherwise it is logged and returns
// Result{Skipped: true}, and the occurrence is NOT marked seen, so a later
// redelivery can still apply it once the data issue is repaired.
func (p *Projector) Apply(ctx context.Context, env event.Envelope) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "projection.apply", trace.WithAttributes(
		attribute.String("event.kind", string(env.Kind)),
		attribute.String("event.tx_hash", env.TxHash),
		attribute.Int64("event.block_number", int64(env.BlockNumber)),
		attribute.Int("event.log_index", int(env.LogIndex)),
	))
	defer span.End()

	if err := env.Validate(); err != nil {
		err = apperrors.Wrap(apperrors.CodeEventMalformed, "invalid event envelope", err)
		if !p.strict {
			return p.skip(span, env, err), nil
		}
		return Result{}, err
	}

	seen, err := p.db.Stores().Applied.Seen(ctx, env.TxHash, env.LogIndex)
	if err != nil {
		return Result{}, storageFailure("check seen event", err)
	}
	if seen {
		span.SetAttributes(attribute.Bool("event.duplicate", true))
		return Result{Duplicate: true}, nil
	}

	duplicate := false
	err = p.db.InTx(ctx, func(b storage.Bundle) error {
		// Re-check inside the transaction so a crash between the fast-path
		// check and the commit cannot double-apply.
		seen, err := b.Applied.Seen(ctx, env.TxHash, env.LogIndex)
		if err != nil {
			return storageFailure("check seen event", err)
		}
		if seen {
			duplicate = true
			return nil
		}

		if err := route(newApplier(b), ctx, env); err != nil {
			return err
		}
		if err := b.Applied.MarkSeen(ctx, storage.AppliedEvent{
			TxHash:      env.TxHash,
			LogIndex:    env.LogIndex,
			BlockNumber: env.BlockNumber,
			AppliedAt:   p.now().UTC(),
		}); err != nil {
			return storageFailure("mark seen event", err)
		}
		return nil
	})
	if err != nil {
		if !p.strict && isRejection(err) {
			return p.skip(span, env, err), nil
		}
		return Result{}, err
	}
	if duplicate {
		span.SetAttributes(attribute.Bool("event.duplicate", true))
		return Result{Duplicate: true}, nil
	}
	return Result{Applied: true}, nil
}

// skip records a dropped event. The occurrence stays unseen so a redelivery
// can apply it once the upstream data is repaired.
func (p *Projector) skip(span trace.Span, env event.Envelope, err error) Result {
	p.logger.Printf("WARN skipping event kind=%s tx=%s log=%d code=%s: %v",
		env.Kind, env.TxHash, env.LogIndex, apperrors.CodeOf(err), err)
	span.SetAttributes(attribute.Bool("event.skipped", true))
	return Result{Skipped: true}
}

// isRejection reports whether the error is a per-event data problem rather
// than an infrastructure failure.
func isRejection(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeDanglingReference, apperrors.CodeOffsetInvalidAmount, apperrors.CodeEventMalformed:
		return true
	}
	return false
}

// storageFailure wraps an infrastructure error, keeping an existing domain
// code intact.
func storageFailure(op string, err error) error {
	if apperrors.CodeOf(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(apperrors.CodeStorageFailure, op+" failed", err)
}
