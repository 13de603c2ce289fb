package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/logging"
	"ragchain/internal/port"
)

// RemoveUseCase deletes passages from the engine index and the linker.
type RemoveUseCase struct {
	retrieval port.Retrieval
	logger    *zap.Logger
}

func NewRemoveUseCase(retrieval port.Retrieval, logger *zap.Logger) *RemoveUseCase {
	return &RemoveUseCase{retrieval: retrieval, logger: logging.OrNop(logger)}
}

// RemoveResult lists which ids had stored passages.
type RemoveResult struct {
	Removed  []string
	NotFound []string
}

// Remove deletes every id from the index and the linker, including ids whose
// document is already gone. It fails with domain.ErrNotFound when none of the
// ids had a stored passage.
func (u *RemoveUseCase) Remove(ctx context.Context, ids []string) (*RemoveResult, error) {
	if len(ids) == 0 {
		return nil, domain.InvalidArgumentf("ids must be a non-empty list")
	}
	remover, ok := u.retrieval.(port.Remover)
	if !ok {
		return nil, domain.InvalidArgumentf("%T does not support removal", u.retrieval)
	}

	fetched, err := u.retrieval.Fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := &RemoveResult{}
	for i, p := range fetched.Passages {
		if p == nil {
			result.NotFound = append(result.NotFound, ids[i])
		} else {
			result.Removed = append(result.Removed, ids[i])
		}
	}

	if err := remover.Remove(ctx, ids...); err != nil {
		return nil, err
	}
	u.logger.Info("passages removed",
		zap.Strings("removed", result.Removed),
		zap.Strings("not_found", result.NotFound))

	if len(result.Removed) == 0 {
		return result, domain.NotFoundf("no stored passage for %s", strings.Join(ids, ", "))
	}
	return result, nil
}
