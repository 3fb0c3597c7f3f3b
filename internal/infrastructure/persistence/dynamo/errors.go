package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/catalog/backend/internal/domain/shared"
)

// classify maps engine faults into the port's error taxonomy before they
// cross the boundary. Transient faults (throttling, timeouts, engine 5xx)
// become ErrStorageUnavailable so callers retry with backoff; a failed
// conditional write becomes ErrStorageConflict; anything else is surfaced
// wrapped but unclassified.
func classify(op string, err error) error {
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return shared.WrapDomainError(shared.ErrStorageConflict.Code,
			"item was modified by another writer", err)
	}

	if isTransient(err) {
		return shared.WrapDomainError(shared.ErrStorageUnavailable.Code,
			fmt.Sprintf("dynamodb %s failed transiently", op), err)
	}

	return fmt.Errorf("dynamodb %s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var throughput *types.ProvisionedThroughputExceededException
	var requestLimit *types.RequestLimitExceeded
	var internal *types.InternalServerError
	if errors.As(err, &throughput) || errors.As(err, &requestLimit) || errors.As(err, &internal) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "Throttling", "ServiceUnavailable", "RequestTimeout", "LimitExceededException":
			return true
		}
	}
	return false
}
