package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/arbor/store"
)

// retryableCodes are API error codes that signal capacity or service trouble
// rather than a bad request.
var retryableCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"LimitExceededException":                 true,
}

// classify maps an SDK error to the store error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return store.TimeoutError(op, err)
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return store.RejectedError(op, err)
	}
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return store.UnavailableError(op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if retryableCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer {
			return store.UnavailableError(op, err)
		}
		return store.RejectedError(op, err)
	}
	return store.UnavailableError(op, err)
}
