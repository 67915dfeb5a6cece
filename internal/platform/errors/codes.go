// Package errors provides structured error handling for the indexer core.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Projection errors
	CodeDanglingReference Code = "DANGLING_REFERENCE"
	CodeEventMalformed    Code = "EVENT_MALFORMED"
	CodeEventOutOfOrder   Code = "EVENT_OUT_OF_ORDER"

	// Offset errors
	CodeOffsetInvalidAmount Code = "OFFSET_INVALID_AMOUNT"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeStorageFailure Code = "STORAGE_FAILURE"

	// Fee estimation errors
	CodeFeeParamsUnavailable Code = "FEE_PARAMS_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed events or amounts
	case CodeEventMalformed,
		CodeOffsetInvalidAmount:
		return codes.InvalidArgument

	// FailedPrecondition - stream state doesn't allow the apply
	case CodeDanglingReference,
		CodeEventOutOfOrder:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodeFeeParamsUnavailable:
		return codes.Unavailable

	case CodeStorageFailure:
		return codes.Internal

	default:
		return codes.Internal
	}
}
