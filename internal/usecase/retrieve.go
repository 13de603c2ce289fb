package usecase

import (
	"context"

	"go.uber.org/zap"
	"ragchain/internal/adapter/chunker"
	"ragchain/internal/domain"
	"ragchain/internal/logging"
	"ragchain/internal/port"
)

// RetrieveUseCase handles search and retrieval operations.
type RetrieveUseCase struct {
	retrieval         port.Retrieval
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
	logger            *zap.Logger
}

func NewRetrieveUseCase(retrieval port.Retrieval, minScoreThreshold float64, logger *zap.Logger) *RetrieveUseCase {
	return &RetrieveUseCase{
		retrieval:         retrieval,
		minScoreThreshold: minScoreThreshold,
		logger:            logging.OrNop(logger),
	}
}

// RetrieveResult holds resolved passages in rank order.
type RetrieveResult struct {
	Passages []domain.ScoredPassage
	// Omitted counts retrieved ids that had no stored passage.
	Omitted     int
	Diagnostics []domain.Diagnostic
}

// RetrieveScored retrieves ids with scores and resolves them to passages.
// Ids without stored content are left out and counted in Omitted.
func (u *RetrieveUseCase) RetrieveScored(ctx context.Context, query string, topK int) (*RetrieveResult, error) {
	ranked, err := u.retrieval.RetrieveIDWithScores(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if u.minScoreThreshold > 0 {
		ranked = filterByThreshold(ranked, u.minScoreThreshold)
	}

	result := &RetrieveResult{}
	if ranked.Len() == 0 {
		return result, nil
	}

	fetched, err := u.retrieval.Fetch(ctx, ranked.IDs)
	if err != nil {
		return nil, err
	}

	result.Passages = make([]domain.ScoredPassage, 0, ranked.Len())
	for i, p := range fetched.Passages {
		if p == nil {
			result.Omitted++
			continue
		}
		result.Passages = append(result.Passages, domain.ScoredPassage{Passage: *p, Score: ranked.Scores[i]})
	}
	result.Diagnostics = fetched.Diagnostics
	for _, d := range fetched.Diagnostics {
		u.logger.Warn("retrieved id has no stored passage, omitting",
			zap.String("id", d.ID), zap.String("kind", string(d.Kind)))
	}
	return result, nil
}

// filterByThreshold removes results below the minimum score threshold.
func filterByThreshold(r domain.RetrievalResult, min float64) domain.RetrievalResult {
	out := domain.RetrievalResult{
		IDs:    make([]string, 0, r.Len()),
		Scores: make([]float64, 0, r.Len()),
	}
	for i, score := range r.Scores {
		if score >= min {
			out.IDs = append(out.IDs, r.IDs[i])
			out.Scores = append(out.Scores, score)
		}
	}
	return out
}

// ScoredPassageResult is a simplified result for CLI output.
type ScoredPassageResult struct {
	ID        string  `json:"id"`
	Source    string  `json:"source,omitempty"`
	StartLine int     `json:"start_line,omitempty"`
	EndLine   int     `json:"end_line,omitempty"`
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
}

func ToResults(passages []domain.ScoredPassage) []ScoredPassageResult {
	out := make([]ScoredPassageResult, len(passages))
	for i, sp := range passages {
		md := sp.Passage.Metadata
		source, _ := md[chunker.MetaSource].(string)
		out[i] = ScoredPassageResult{
			ID:        sp.Passage.ID,
			Source:    source,
			StartLine: metaInt(md, chunker.MetaStartLine),
			EndLine:   metaInt(md, chunker.MetaEndLine),
			Score:     sp.Score,
			Text:      sp.Passage.Content,
		}
	}
	return out
}

// metaInt reads a numeric metadata value. Documents that went through JSON
// carry numbers as float64.
func metaInt(md map[string]any, key string) int {
	switch v := md[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
