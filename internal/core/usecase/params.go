package usecase

// Params carries the tuned pipeline constants. The retrieval-admission and
// claim-grounding thresholds serve different checkpoints and are kept as
// separate values on purpose.
type Params struct {
	HistoryWindow int
	MinQueryChars int

	RetrievalTopK    int
	HybridCandidates int
	SemanticWeight   float64
	LexicalWeight    float64

	RerankTopN              int
	RerankRelativeThreshold float64
	RerankSkipThreshold     float64
	RerankMinKeep           int
	RerankPoorQualityFloor  float64

	CategoryFloor int

	EvidenceAdmitThreshold float64
	MinEvidenceCount       int

	GroundingThreshold  float64
	FAQDirectThreshold  float64
	FAQRelaxedThreshold float64
}

func DefaultParams() Params {
	return Params{
		HistoryWindow: 10,
		MinQueryChars: 2,

		RetrievalTopK:    5,
		HybridCandidates: 20,
		SemanticWeight:   0.7,
		LexicalWeight:    0.3,

		RerankTopN:              10,
		RerankRelativeThreshold: 0.35,
		RerankSkipThreshold:     0.88,
		RerankMinKeep:           2,
		RerankPoorQualityFloor:  0.2,

		CategoryFloor: 2,

		EvidenceAdmitThreshold: 0.65,
		MinEvidenceCount:       1,

		GroundingThreshold:  0.45,
		FAQDirectThreshold:  0.72,
		FAQRelaxedThreshold: 0.60,
	}
}

func (p Params) normalize() Params {
	def := DefaultParams()
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = def.HistoryWindow
	}
	if p.MinQueryChars <= 0 {
		p.MinQueryChars = def.MinQueryChars
	}
	if p.RetrievalTopK <= 0 {
		p.RetrievalTopK = def.RetrievalTopK
	}
	if p.HybridCandidates <= 0 {
		p.HybridCandidates = def.HybridCandidates
	}
	if p.SemanticWeight <= 0 {
		p.SemanticWeight = def.SemanticWeight
	}
	if p.LexicalWeight < 0 {
		p.LexicalWeight = def.LexicalWeight
	}
	if p.RerankTopN <= 0 {
		p.RerankTopN = def.RerankTopN
	}
	if p.RerankRelativeThreshold <= 0 || p.RerankRelativeThreshold >= 1 {
		p.RerankRelativeThreshold = def.RerankRelativeThreshold
	}
	if p.RerankSkipThreshold <= 0 || p.RerankSkipThreshold > 1 {
		p.RerankSkipThreshold = def.RerankSkipThreshold
	}
	if p.RerankMinKeep <= 0 {
		p.RerankMinKeep = def.RerankMinKeep
	}
	if p.RerankPoorQualityFloor <= 0 {
		p.RerankPoorQualityFloor = def.RerankPoorQualityFloor
	}
	if p.CategoryFloor <= 0 {
		p.CategoryFloor = def.CategoryFloor
	}
	if p.EvidenceAdmitThreshold <= 0 {
		p.EvidenceAdmitThreshold = def.EvidenceAdmitThreshold
	}
	if p.MinEvidenceCount <= 0 {
		p.MinEvidenceCount = def.MinEvidenceCount
	}
	if p.GroundingThreshold <= 0 {
		p.GroundingThreshold = def.GroundingThreshold
	}
	if p.FAQDirectThreshold <= 0 {
		p.FAQDirectThreshold = def.FAQDirectThreshold
	}
	if p.FAQRelaxedThreshold <= 0 {
		p.FAQRelaxedThreshold = def.FAQRelaxedThreshold
	}
	return p
}
