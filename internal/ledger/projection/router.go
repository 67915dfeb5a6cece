package projection

import (
	"context"
	"fmt"
	"sort"

	"github.com/wandeoki/afritrace/internal/ledger/event"
	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

// storeRequirement specifies which stores a handler depends on. Hard
// requirements are checked before dispatch; the handler will not execute if
// any required store is nil.
type storeRequirement uint8

const (
	needProducts storeRequirement = 1 << iota
	needSteps
	needDisputes
	needOffsets
	needUsers
)

// handlerEntry declares the preconditions and apply function for one event kind.
type handlerEntry struct {
	stores storeRequirement
	apply  func(Applier, context.Context, event.Envelope) error
}

// typed adapts a payload-typed apply function to the registry signature.
// Envelope.Validate guarantees the payload variant matches the kind, so a
// failed assertion means the envelope bypassed boundary validation.
func typed[P event.Payload](fn func(Applier, context.Context, event.Envelope, P) error) func(Applier, context.Context, event.Envelope) error {
	return func(a Applier, ctx context.Context, env event.Envelope) error {
		payload, ok := env.Payload.(P)
		if !ok {
			return apperrors.New(apperrors.CodeEventMalformed,
				fmt.Sprintf("unexpected payload type %T for %s", env.Payload, env.Kind))
		}
		return fn(a, ctx, env, payload)
	}
}

// handlers maps each ledger event kind to its handler entry.
var handlers = map[event.Kind]handlerEntry{
	event.KindProductCreated: {
		stores: needProducts | needUsers,
		apply:  typed(Applier.applyProductCreated),
	},
	event.KindSupplyChainUpdated: {
		stores: needProducts | needSteps,
		apply:  typed(Applier.applySupplyChainUpdated),
	},
	event.KindProductCertified: {
		stores: needProducts,
		apply:  typed(Applier.applyProductCertified),
	},
	event.KindDisputeCreated: {
		stores: needDisputes | needProducts,
		apply:  typed(Applier.applyDisputeCreated),
	},
	event.KindDisputeResolved: {
		stores: needDisputes,
		apply:  typed(Applier.applyDisputeResolved),
	},
	event.KindCarbonOffseted: {
		stores: needOffsets | needUsers,
		apply:  typed(Applier.applyCarbonOffseted),
	},
}

// HandledKinds returns the sorted list of event kinds in the handler
// registry, derived from the map so there is a single source of truth.
func HandledKinds() []event.Kind {
	kinds := make([]event.Kind, 0, len(handlers))
	for k := range handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return string(kinds[i]) < string(kinds[j])
	})
	return kinds
}

// route dispatches an envelope to the registered handler after checking
// store preconditions.
func route(a Applier, ctx context.Context, env event.Envelope) error {
	h, ok := handlers[env.Kind]
	if !ok {
		return apperrors.New(apperrors.CodeEventMalformed,
			fmt.Sprintf("unhandled event kind: %s", env.Kind))
	}
	if err := a.validatePreconditions(h); err != nil {
		return err
	}
	return h.apply(a, ctx, env)
}

// validatePreconditions checks that the applier's stores satisfy the
// handler's declared requirements.
func (a Applier) validatePreconditions(h handlerEntry) error {
	if h.stores&needProducts != 0 && a.Products == nil {
		return fmt.Errorf("product store is not configured")
	}
	if h.stores&needSteps != 0 && a.Steps == nil {
		return fmt.Errorf("supply chain step store is not configured")
	}
	if h.stores&needDisputes != 0 && a.Disputes == nil {
		return fmt.Errorf("dispute store is not configured")
	}
	if h.stores&needOffsets != 0 && a.Offsets == nil {
		return fmt.Errorf("carbon offset store is not configured")
	}
	if h.stores&needUsers != 0 && a.Users == nil {
		return fmt.Errorf("user store is not configured")
	}
	return nil
}
