package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
)

// mapError translates client errors into repository sentinels. Anything not
// recognised is treated as transient.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if model.KindOf(err) != nil || errors.Is(err, model.ErrRatingsApplied) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		txConflict *types.TransactionConflictException
		inProgress *types.TransactionInProgressException
		notFound   *types.ResourceNotFoundException
	)
	switch {
	case errors.As(err, &txConflict), errors.As(err, &inProgress):
		return fmt.Errorf("%w: %w", repository.ErrConflict, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: table missing: %w", repository.ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
}
