package fees

import (
	"context"
	"errors"
	"math/big"
	"testing"

	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

// fakeParams serves fixed fee parameters, with per-field error injection.
type fakeParams struct {
	baseFee     *big.Int
	overhead    *big.Int
	scalar      *big.Int
	denominator *big.Int
	gasPrice    *big.Int
	gasUnits    *big.Int

	baseFeeErr  error
	simulateErr error
}

func (f *fakeParams) BaseFee(ctx context.Context) (*big.Int, error) {
	return f.baseFee, f.baseFeeErr
}

func (f *fakeParams) OverheadUnits(ctx context.Context) (*big.Int, error) {
	return f.overhead, nil
}

func (f *fakeParams) Scalar(ctx context.Context) (*big.Int, error) {
	return f.scalar, nil
}

func (f *fakeParams) ScalarDenominator(ctx context.Context) (*big.Int, error) {
	return f.denominator, nil
}

func (f *fakeParams) GasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeParams) SimulateGas(ctx context.Context, call Call) (*big.Int, error) {
	return f.gasUnits, f.simulateErr
}

func defaultParams() *fakeParams {
	return &fakeParams{
		baseFee:     big.NewInt(1000),
		overhead:    big.NewInt(200),
		scalar:      big.NewInt(1_000_000),
		denominator: big.NewInt(1_000_000),
		gasPrice:    big.NewInt(7),
		gasUnits:    big.NewInt(21_000),
	}
}

func newTestEstimator(t *testing.T, params ParamSource) *Estimator {
	t.Helper()
	e, err := NewEstimator(params)
	if err != nil {
		t.Fatalf("NewEstimator returned error: %v", err)
	}
	return e
}

func TestDataFee_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := newTestEstimator(t, defaultParams())
	payload := make([]byte, 32)

	// 1000 * (200 + 32*16) * 1000000 / 1000000
	want := big.NewInt(712_000)
	for i := 0; i < 3; i++ {
		fee, err := e.DataFee(ctx, payload)
		if err != nil {
			t.Fatalf("DataFee returned error: %v", err)
		}
		if fee.Cmp(want) != 0 {
			t.Fatalf("fee = %s, want %s", fee, want)
		}
	}
}

func TestDataFee_MonotonicInPayloadLength(t *testing.T) {
	ctx := context.Background()
	e := newTestEstimator(t, defaultParams())

	prev := big.NewInt(-1)
	for _, n := range []int{0, 1, 16, 32, 64, 1024} {
		fee, err := e.DataFee(ctx, make([]byte, n))
		if err != nil {
			t.Fatalf("DataFee(%d bytes) returned error: %v", n, err)
		}
		if fee.Cmp(prev) < 0 {
			t.Fatalf("fee for %d bytes = %s decreased below %s", n, fee, prev)
		}
		prev = fee
	}
}

func TestDataFee_DividesLast(t *testing.T) {
	ctx := context.Background()
	params := defaultParams()
	params.scalar = big.NewInt(999_999)
	e := newTestEstimator(t, params)

	// 1000 * 712 * 999999 / 1000000 truncates once, at the end. Scaling the
	// base fee first would truncate to 999 and lose 711 units.
	fee, err := e.DataFee(ctx, make([]byte, 32))
	if err != nil {
		t.Fatalf("DataFee returned error: %v", err)
	}
	if want := big.NewInt(711_999); fee.Cmp(want) != 0 {
		t.Fatalf("fee = %s, want %s", fee, want)
	}
}

func TestDataFee_ZeroDenominator(t *testing.T) {
	params := defaultParams()
	params.denominator = big.NewInt(0)
	e := newTestEstimator(t, params)

	_, err := e.DataFee(context.Background(), nil)
	if apperrors.CodeOf(err) != apperrors.CodeFeeParamsUnavailable {
		t.Fatalf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeFeeParamsUnavailable)
	}
}

func TestExecutionFee(t *testing.T) {
	e := newTestEstimator(t, defaultParams())

	fee, err := e.ExecutionFee(context.Background(), Call{To: "0xcontract"})
	if err != nil {
		t.Fatalf("ExecutionFee returned error: %v", err)
	}
	if want := big.NewInt(147_000); fee.Cmp(want) != 0 {
		t.Fatalf("fee = %s, want %s", fee, want)
	}
}

func TestTotalFee_SumsBothComponents(t *testing.T) {
	e := newTestEstimator(t, defaultParams())

	est, err := e.TotalFee(context.Background(), Call{To: "0xcontract", Data: make([]byte, 32)})
	if err != nil {
		t.Fatalf("TotalFee returned error: %v", err)
	}
	if want := big.NewInt(712_000 + 147_000); est.Total.Cmp(want) != 0 {
		t.Fatalf("total = %s, want %s", est.Total, want)
	}
	if est.Stale {
		t.Fatal("fresh estimate must not be stale")
	}
}

func TestTotalFee_SaturatesOnOverflow(t *testing.T) {
	params := defaultParams()
	params.gasPrice = new(big.Int).Set(maxFee)
	params.gasUnits = big.NewInt(1)
	e := newTestEstimator(t, params)

	est, err := e.TotalFee(context.Background(), Call{To: "0xcontract", Data: make([]byte, 32)})
	if err != nil {
		t.Fatalf("TotalFee returned error: %v", err)
	}
	if est.Total.Cmp(maxFee) != 0 {
		t.Fatalf("total = %s, want saturated at fee bound", est.Total)
	}
}

func TestTotalFee_FailureReturnsNoPartialFee(t *testing.T) {
	params := defaultParams()
	params.simulateErr = errors.New("node unreachable")
	e := newTestEstimator(t, params)

	est, err := e.TotalFee(context.Background(), Call{To: "0xcontract"})
	if apperrors.CodeOf(err) != apperrors.CodeFeeParamsUnavailable {
		t.Fatalf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeFeeParamsUnavailable)
	}
	if est.Total != nil || est.DataFee != nil || est.ExecutionFee != nil {
		t.Fatalf("estimate = %+v, want zero value", est)
	}
}

func TestEstimateProductCreationFee(t *testing.T) {
	e := newTestEstimator(t, defaultParams())

	est, err := e.EstimateProductCreationFee(context.Background(), "0xcontract", make([]byte, 32))
	if err != nil {
		t.Fatalf("EstimateProductCreationFee returned error: %v", err)
	}
	if want := big.NewInt(712_000 + 147_000); est.Total.Cmp(want) != 0 {
		t.Fatalf("total = %s, want %s", est.Total, want)
	}
}

func TestCached_ServesLastEstimateAsStale(t *testing.T) {
	params := defaultParams()
	e := newTestEstimator(t, params)

	if _, ok := e.Cached(); ok {
		t.Fatal("empty estimator must have no cached estimate")
	}

	fresh, err := e.TotalFee(context.Background(), Call{To: "0xcontract"})
	if err != nil {
		t.Fatalf("TotalFee returned error: %v", err)
	}

	params.baseFeeErr = errors.New("node unreachable")
	if _, err := e.TotalFee(context.Background(), Call{To: "0xcontract"}); err == nil {
		t.Fatal("expected error after parameter source failure")
	}

	cached, ok := e.Cached()
	if !ok {
		t.Fatal("expected cached estimate")
	}
	if !cached.Stale {
		t.Fatal("cached estimate must be marked stale")
	}
	if cached.Total.Cmp(fresh.Total) != 0 {
		t.Fatalf("cached total = %s, want %s", cached.Total, fresh.Total)
	}
}
