// Package fees estimates rollup transaction costs.
//
// A transaction on the ledger pays two independent fees: a data fee for
// publishing the call payload off chain and an execution fee for running it.
// Both are computed in arbitrary-precision integer arithmetic in the smallest
// currency unit; no floating point appears anywhere so repeated estimates of
// the same call never drift.
package fees

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

// bytesPerUnit is the data-availability cost of one payload byte, in
// overhead units.
const bytesPerUnit = 16

// maxFee bounds every fee at the largest unsigned 256-bit value. Sums that
// would exceed it saturate instead of wrapping.
var maxFee = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Call describes the transaction whose cost is being estimated.
type Call struct {
	// To is the target contract address.
	To string
	// Data is the call payload.
	Data []byte
	// Value is the native currency attached to the call. Nil means zero.
	Value *big.Int
}

// ParamSource reads live network fee parameters. Implementations talk to the
// ledger node; every method may block on the network and must honor ctx.
type ParamSource interface {
	BaseFee(ctx context.Context) (*big.Int, error)
	OverheadUnits(ctx context.Context) (*big.Int, error)
	Scalar(ctx context.Context) (*big.Int, error)
	ScalarDenominator(ctx context.Context) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	// SimulateGas estimates the gas units the call would consume.
	SimulateGas(ctx context.Context, call Call) (*big.Int, error)
}

// Estimate is one total-fee result.
type Estimate struct {
	// DataFee is the off-chain data publishing component.
	DataFee *big.Int
	// ExecutionFee is the on-chain execution component.
	ExecutionFee *big.Int
	// Total is the saturating sum of both components.
	Total *big.Int
	// At is when the estimate was computed.
	At time.Time
	// Stale marks an estimate served from cache after a failed refresh.
	Stale bool
}

// Estimator computes fee estimates from a live parameter source. It is safe
// for concurrent use.
type Estimator struct {
	source ParamSource
	now    func() time.Time

	mu     sync.Mutex
	cached *Estimate
}

// NewEstimator builds an estimator over a parameter source.
func NewEstimator(source ParamSource) (*Estimator, error) {
	if source == nil {
		return nil, fmt.Errorf("fee parameter source is required")
	}
	return &Estimator{source: source, now: time.Now}, nil
}

// DataFee estimates the data-availability component for a payload:
//
//	baseFee * (overheadUnits + len(payload)*bytesPerUnit) * scalar / denominator
//
// The division happens last so truncation is applied once, to the final
// product, never to an intermediate term.
func (e *Estimator) DataFee(ctx context.Context, payload []byte) (*big.Int, error) {
	baseFee, err := e.readParam(ctx, "base fee", e.source.BaseFee)
	if err != nil {
		return nil, err
	}
	overhead, err := e.readParam(ctx, "overhead units", e.source.OverheadUnits)
	if err != nil {
		return nil, err
	}
	scalar, err := e.readParam(ctx, "scalar", e.source.Scalar)
	if err != nil {
		return nil, err
	}
	denominator, err := e.readParam(ctx, "scalar denominator", e.source.ScalarDenominator)
	if err != nil {
		return nil, err
	}
	if denominator.Sign() == 0 {
		return nil, apperrors.New(apperrors.CodeFeeParamsUnavailable, "scalar denominator is zero")
	}

	units := new(big.Int).Mul(big.NewInt(int64(len(payload))), big.NewInt(bytesPerUnit))
	units.Add(units, overhead)

	fee := new(big.Int).Mul(baseFee, units)
	fee.Mul(fee, scalar)
	fee.Quo(fee, denominator)
	return clampFee(fee), nil
}

// ExecutionFee estimates the execution component: current gas price times the
// simulated gas consumption of the call.
func (e *Estimator) ExecutionFee(ctx context.Context, call Call) (*big.Int, error) {
	gasPrice, err := e.readParam(ctx, "gas price", e.source.GasPrice)
	if err != nil {
		return nil, err
	}
	gasUnits, err := e.source.SimulateGas(ctx, call)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFeeParamsUnavailable, "gas simulation failed", err)
	}
	if gasUnits == nil || gasUnits.Sign() < 0 {
		return nil, apperrors.New(apperrors.CodeFeeParamsUnavailable, "gas simulation returned an invalid unit count")
	}
	return clampFee(new(big.Int).Mul(gasPrice, gasUnits)), nil
}

// TotalFee estimates the full cost of a call. The two components depend on
// disjoint parameters, so they are fetched concurrently; the sum waits for
// both and saturates at the fee magnitude bound. A failed estimate returns no
// partial fee.
func (e *Estimator) TotalFee(ctx context.Context, call Call) (Estimate, error) {
	var (
		dataFee, execFee *big.Int
		dataErr, execErr error
		wg               sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		dataFee, dataErr = e.DataFee(ctx, call.Data)
	}()
	go func() {
		defer wg.Done()
		execFee, execErr = e.ExecutionFee(ctx, call)
	}()
	wg.Wait()

	if dataErr != nil {
		return Estimate{}, dataErr
	}
	if execErr != nil {
		return Estimate{}, execErr
	}

	total := clampFee(new(big.Int).Add(dataFee, execFee))
	est := Estimate{
		DataFee:      dataFee,
		ExecutionFee: execFee,
		Total:        total,
		At:           e.now().UTC(),
	}

	e.mu.Lock()
	cached := est
	e.cached = &cached
	e.mu.Unlock()
	return est, nil
}

// EstimateProductCreationFee estimates the cost of submitting a product
// creation call. The calldata arrives pre-encoded; ABI encoding belongs to the
// transaction-preparation layer.
func (e *Estimator) EstimateProductCreationFee(ctx context.Context, contract string, calldata []byte) (Estimate, error) {
	return e.TotalFee(ctx, Call{To: contract, Data: calldata})
}

// Cached returns the most recent successful estimate, marked stale. Callers
// fall back to it when TotalFee fails and a degraded number beats none.
func (e *Estimator) Cached() (Estimate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached == nil {
		return Estimate{}, false
	}
	est := *e.cached
	est.Stale = true
	return est, true
}

func (e *Estimator) readParam(ctx context.Context, name string, read func(context.Context) (*big.Int, error)) (*big.Int, error) {
	v, err := read(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFeeParamsUnavailable, "read "+name+" failed", err)
	}
	if v == nil || v.Sign() < 0 {
		return nil, apperrors.New(apperrors.CodeFeeParamsUnavailable, name+" is invalid")
	}
	return v, nil
}

// clampFee saturates a fee at the 256-bit magnitude bound.
func clampFee(fee *big.Int) *big.Int {
	if fee.Cmp(maxFee) > 0 {
		return new(big.Int).Set(maxFee)
	}
	return fee
}
