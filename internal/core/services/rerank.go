package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ask/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// Ensure RerankService implements the interface.
var _ driving.RerankService = (*RerankService)(nil)

// RerankService reorders candidates with a relevance model.
type RerankService struct {
	reranker driven.Reranker
	timeout  time.Duration
}

// NewRerankService creates a rerank service. A nil reranker makes every
// call a passthrough.
func NewRerankService(reranker driven.Reranker, timeout time.Duration) *RerankService {
	return &RerankService{reranker: reranker, timeout: timeout}
}

// Enabled reports whether a provider is configured.
func (s *RerankService) Enabled() bool {
	return s != nil && s.reranker != nil
}

// Rerank returns the k most relevant candidates in descending relevance.
// Equal scores keep their input order. Provenance is not a ranking input.
//
// When the provider fails, the first k candidates are returned unchanged
// along with an error wrapping ErrRerankUnavailable. The returned slice is
// always usable.
func (s *RerankService) Rerank(
	ctx context.Context, query string, candidates []domain.Candidate, k int,
) ([]domain.Candidate, error) {
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}
	if len(candidates) == 0 {
		return []domain.Candidate{}, nil
	}
	if !s.Enabled() {
		return passthrough(candidates, k), nil
	}

	docs := make([]string, len(candidates))
	for i := range candidates {
		docs[i] = candidates[i].Content
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	scores, err := s.reranker.Score(callCtx, query, docs)
	if err != nil {
		logger.Warn("Rerank via %s failed after %s, passing through: %v", s.reranker.Name(), time.Since(start), err)
		return passthrough(candidates, k), fmt.Errorf("%w: %s: %w", domain.ErrRerankUnavailable, s.reranker.Name(), err)
	}
	if len(scores) != len(candidates) {
		logger.Warn("Rerank via %s returned %d scores for %d candidates", s.reranker.Name(), len(scores), len(candidates))
		return passthrough(candidates, k), fmt.Errorf("%w: %s returned %d scores for %d candidates",
			domain.ErrRerankUnavailable, s.reranker.Name(), len(scores), len(candidates))
	}

	logger.Debug("Reranked %d candidates via %s in %s", len(candidates), s.reranker.Name(), time.Since(start))
	return orderByScores(candidates, scores, k), nil
}

// orderByScores stably sorts candidates by scores and keeps the top k. The
// reranker's scores replace the retrieval scores, normalised into [0, 1].
func orderByScores(candidates []domain.Candidate, scores []float64, k int) []domain.Candidate {
	norm := normaliseScores(scores)

	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return norm[idx[a]] > norm[idx[b]]
	})

	out := make([]domain.Candidate, 0, k)
	for _, i := range idx[:k] {
		c := candidates[i]
		c.Score = norm[i]
		c.Relevance = norm[i]
		out = append(out, c)
	}
	return out
}

// normaliseScores maps provider scores into [0, 1]. Scores already in that
// range are kept so thresholds stay meaningful; anything else is min-max
// scaled. NaN counts as the lowest score.
func normaliseScores(scores []float64) []float64 {
	out := make([]float64, len(scores))
	lo, hi := math.Inf(1), math.Inf(-1)
	inUnit := true
	for i, s := range scores {
		if math.IsNaN(s) {
			s = math.Inf(-1)
		}
		out[i] = s
		if math.IsInf(s, 0) {
			inUnit = false
			continue
		}
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
		if s < 0 || s > 1 {
			inUnit = false
		}
	}
	if inUnit {
		return out
	}

	for i, s := range out {
		switch {
		case math.IsInf(s, -1):
			out[i] = 0
		case math.IsInf(s, 1):
			out[i] = 1
		case hi > lo:
			out[i] = (s - lo) / (hi - lo)
		default:
			out[i] = 1
		}
	}
	return out
}

func passthrough(candidates []domain.Candidate, k int) []domain.Candidate {
	out := make([]domain.Candidate, k)
	copy(out, candidates[:k])
	return out
}
