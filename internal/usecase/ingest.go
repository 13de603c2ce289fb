package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"ragchain/internal/adapter/fs"
	"ragchain/internal/domain"
	"ragchain/internal/logging"
	"ragchain/internal/port"
)

// ProgressFunc is called after each file with the number of files processed
// so far, the total and the file just handled.
type ProgressFunc func(processed, total int, current string)

// IngestUseCase walks a directory, splits files into passages and hands them
// to a retrieval engine.
type IngestUseCase struct {
	walker    port.FileWalker
	splitter  port.Splitter
	retrieval port.Retrieval
	logger    *zap.Logger
}

func NewIngestUseCase(
	walker port.FileWalker,
	splitter port.Splitter,
	retrieval port.Retrieval,
	logger *zap.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		walker:    walker,
		splitter:  splitter,
		retrieval: retrieval,
		logger:    logging.OrNop(logger),
	}
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	RunID            string
	FilesIngested    int
	FilesSkipped     int // empty or unreadable as text
	FilesFailed      int
	PassagesIngested int
	// Err aggregates per-file failures; nil when every file succeeded.
	Err error
}

// Ingest processes every file under root. A failing file is recorded in the
// result and does not stop the run; only walk and cancellation errors are
// returned directly.
func (u *IngestUseCase) Ingest(ctx context.Context, root string, progress ProgressFunc) (*IngestResult, error) {
	result := &IngestResult{RunID: uuid.NewString()}
	logger := u.logger.With(zap.String("run_id", result.RunID), zap.String("root", root))

	files, err := u.walker.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	logger.Info("ingest started", zap.Int("files", len(files)))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		n, err := u.ingestFile(ctx, file)
		switch {
		case err != nil:
			result.FilesFailed++
			result.Err = multierr.Append(result.Err, fmt.Errorf("%s: %w", file.RelPath, err))
			logger.Warn("file ingest failed", zap.String("file", file.RelPath), zap.Error(err))
		case n == 0:
			result.FilesSkipped++
		default:
			result.FilesIngested++
			result.PassagesIngested += n
		}

		if progress != nil {
			progress(i+1, len(files), file.RelPath)
		}
	}

	logger.Info("ingest finished",
		zap.Int("ingested", result.FilesIngested),
		zap.Int("skipped", result.FilesSkipped),
		zap.Int("failed", result.FilesFailed),
		zap.Int("passages", result.PassagesIngested),
	)
	return result, nil
}

func (u *IngestUseCase) ingestFile(ctx context.Context, file port.FileInfo) (int, error) {
	content, err := fs.ReadText(file.Path)
	if err != nil {
		u.logger.Debug("skipping file", zap.String("file", file.RelPath), zap.Error(err))
		return 0, nil
	}

	passages := u.splitter.Split(file.RelPath, content)
	if len(passages) == 0 {
		return 0, nil
	}
	if err := u.retrieval.Ingest(ctx, passages); err != nil {
		return 0, err
	}
	return len(passages), nil
}

// IngestPassages ingests caller-built passages. Passages without an id get a
// random one; the ids actually used are returned in input order.
func (u *IngestUseCase) IngestPassages(ctx context.Context, passages []domain.Passage) ([]string, error) {
	ids := make([]string, len(passages))
	batch := make([]domain.Passage, len(passages))
	for i, p := range passages {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		ids[i] = p.ID
		batch[i] = p
	}
	if err := u.retrieval.Ingest(ctx, batch); err != nil {
		return nil, err
	}
	return ids, nil
}
