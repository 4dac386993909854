package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hoteldesk/concierge/internal/core/domain"
	"github.com/hoteldesk/concierge/internal/core/ports"
)

const (
	RerankQualityGood    = "good"
	RerankQualityPoor    = "poor"
	RerankQualityUnknown = "unknown"
)

// HybridRetriever fans out semantic and lexical search, fuses the scored
// results, and filters the fused set with a cross-encoder reranker.
type HybridRetriever struct {
	searcher ports.EvidenceSearcher
	reranker ports.Reranker
	params   Params
	logger   *slog.Logger
}

func NewHybridRetriever(
	searcher ports.EvidenceSearcher,
	reranker ports.Reranker,
	params Params,
	logger *slog.Logger,
) *HybridRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		searcher: searcher,
		reranker: reranker,
		params:   params.normalize(),
		logger:   logger,
	}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, state *domain.PipelineState) error {
	filter := domain.SearchFilter{PropertyID: state.PropertyID}

	var (
		semantic, lexical []domain.ScoredRecord
		semErr, lexErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic, semErr = r.searcher.SearchSemantic(gctx, state.SearchQuery, r.params.HybridCandidates, filter)
		return nil
	})
	g.Go(func() error {
		lexical, lexErr = r.searcher.SearchLexical(gctx, state.SearchQuery, r.params.HybridCandidates, filter)
		return nil
	})
	_ = g.Wait()

	if semErr != nil && lexErr != nil {
		return domain.WrapError(domain.ErrUpstreamSearch, "hybrid search", errors.Join(semErr, lexErr))
	}
	if semErr != nil {
		r.logger.Warn("partial_hybrid", "backend", "semantic", "error", semErr)
	}
	if lexErr != nil {
		r.logger.Warn("partial_hybrid", "backend", "lexical", "error", lexErr)
	}

	candidates := r.fuse(semantic, lexical)
	candidates = r.boostCarriedChunks(state, candidates)
	candidates = r.applyCategoryFilter(state, candidates)
	candidates = r.rerank(ctx, state, candidates)

	if len(candidates) > r.params.RetrievalTopK {
		candidates = candidates[:r.params.RetrievalTopK]
	}

	state.Candidates = candidates
	state.TopScore = domain.TopScore(candidates)
	return nil
}

// fuse merges the two result lists per record. The lexical side is
// normalized to [0,1] by its own maximum before weighting, since raw term
// frequency scores are unbounded.
func (r *HybridRetriever) fuse(semantic, lexical []domain.ScoredRecord) []domain.RetrievalCandidate {
	maxLex := 0.0
	for _, sr := range lexical {
		if sr.Score > maxLex {
			maxLex = sr.Score
		}
	}

	acc := make(map[string]*domain.RetrievalCandidate, len(semantic)+len(lexical))
	for _, sr := range semantic {
		acc[sr.Record.ID] = &domain.RetrievalCandidate{
			Record:        sr.Record,
			SemanticScore: sr.Score,
		}
	}
	for _, sr := range lexical {
		norm := 0.0
		if maxLex > 0 {
			norm = sr.Score / maxLex
		}
		if c, ok := acc[sr.Record.ID]; ok {
			c.LexicalScore = norm
			continue
		}
		acc[sr.Record.ID] = &domain.RetrievalCandidate{
			Record:       sr.Record,
			LexicalScore: norm,
		}
	}

	out := make([]domain.RetrievalCandidate, 0, len(acc))
	for _, c := range acc {
		c.FinalScore = r.params.SemanticWeight*c.SemanticScore + r.params.LexicalWeight*c.LexicalScore
		out = append(out, *c)
	}
	sortCandidates(out)

	if len(out) > r.params.HybridCandidates {
		out = out[:r.params.HybridCandidates]
	}
	return out
}

// boostCarriedChunks seeds follow-up retrieval with the previous turn's
// evidence so a short refinement does not lose the thread.
func (r *HybridRetriever) boostCarriedChunks(state *domain.PipelineState, candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if state.CarriedTopic == "" || state.Topic != state.CarriedTopic || len(state.CarriedChunks) == 0 {
		return candidates
	}

	queryTokens := toTokenSet(state.NormalizedQuery)
	index := make(map[string]int, len(candidates))
	for i, c := range candidates {
		index[c.Record.ID] = i
	}

	for _, record := range state.CarriedChunks {
		overlap := tokenOverlap(queryTokens, toTokenSet(record.Text))
		boost := 0.3*overlap + 0.4
		if boost > 1 {
			boost = 1
		}
		if i, ok := index[record.ID]; ok {
			if boost > candidates[i].FinalScore {
				candidates[i].FinalScore = boost
			}
			continue
		}
		candidates = append(candidates, domain.RetrievalCandidate{
			Record:     record,
			FinalScore: boost,
		})
	}

	sortCandidates(candidates)
	return candidates
}

// applyCategoryFilter narrows follow-up retrieval to the conversation's
// category. Opening turns are never filtered, and the filter fails open
// when it would leave fewer than the floor.
func (r *HybridRetriever) applyCategoryFilter(state *domain.PipelineState, candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if len(state.History) == 0 || state.Category == "" {
		return candidates
	}

	filtered := make([]domain.RetrievalCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Record.Category == "" || c.Record.Category == state.Category {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) < r.params.CategoryFloor {
		r.logger.Debug("category_filter_dropped",
			"category", state.Category,
			"filtered", len(filtered),
			"floor", r.params.CategoryFloor,
		)
		return candidates
	}

	state.EffectiveCategory = state.Category
	return filtered
}

func (r *HybridRetriever) rerank(ctx context.Context, state *domain.PipelineState, candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if r.reranker == nil || len(candidates) < 2 {
		return candidates
	}
	// Near-perfect fused scores do not benefit from reranking; skip the
	// extra model round trip.
	if domain.TopScore(candidates) >= r.params.RerankSkipThreshold {
		return candidates
	}

	topN := r.params.RerankTopN
	if topN > len(candidates) {
		topN = len(candidates)
	}
	head := candidates[:topN]

	passages := make([]string, len(head))
	for i, c := range head {
		passages[i] = c.Record.Text
	}

	scores, err := r.reranker.Rerank(ctx, state.NormalizedQuery, passages)
	if err != nil || len(scores) != len(head) {
		r.logger.Warn("rerank_unavailable", "error", err, "scores", len(scores), "passages", len(passages))
		state.RerankQuality = RerankQualityUnknown
		return candidates
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}

	if best < r.params.RerankPoorQualityFloor {
		state.RerankQuality = RerankQualityPoor
	} else {
		state.RerankQuality = RerankQualityGood
	}

	protect := protectionKeywords(state.SearchQuery)
	cutoff := best * r.params.RerankRelativeThreshold

	kept := make([]domain.RetrievalCandidate, 0, len(head))
	for i := range head {
		c := head[i]
		c.RerankScore = scores[i]
		c.HasRerank = true

		if scores[i] >= cutoff {
			kept = append(kept, c)
			continue
		}
		if keywordHit(c.Record.Text, protect) {
			c.KeywordProtected = true
			kept = append(kept, c)
		}
	}

	if len(kept) < r.params.RerankMinKeep {
		kept = kept[:0]
		order := make([]int, len(head))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
		for _, i := range order {
			if len(kept) == r.params.RerankMinKeep {
				break
			}
			c := head[i]
			c.RerankScore = scores[i]
			c.HasRerank = true
			kept = append(kept, c)
		}
	}

	// Rerank drives ordering only; FinalScore keeps the fused value so the
	// evidence gate judges retrieval confidence, not reranker calibration.
	sort.SliceStable(kept, func(a, b int) bool {
		if kept[a].RerankScore != kept[b].RerankScore {
			return kept[a].RerankScore > kept[b].RerankScore
		}
		if kept[a].FinalScore != kept[b].FinalScore {
			return kept[a].FinalScore > kept[b].FinalScore
		}
		return kept[a].Record.ID < kept[b].Record.ID
	})
	return kept
}

// protectionKeywords extracts the literal query terms whose presence in a
// passage overrides the rerank cutoff. Short function words are excluded.
func protectionKeywords(query string) []string {
	tokens := splitAlphaNumLower(query)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) >= 4 {
			out = append(out, t)
		}
	}
	return out
}

func keywordHit(text string, keywords []string) bool {
	lower := toTokenSet(text)
	for _, k := range keywords {
		if _, ok := lower[k]; ok {
			return true
		}
	}
	return false
}

func sortCandidates(candidates []domain.RetrievalCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FinalScore != candidates[j].FinalScore {
			return candidates[i].FinalScore > candidates[j].FinalScore
		}
		return candidates[i].Record.ID < candidates[j].Record.ID
	})
}
