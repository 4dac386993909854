package usecase

import "github.com/hoteldesk/concierge/internal/core/domain"

const (
	GateReasonAdmitted   = "admitted"
	GateReasonLowScore   = "low_score"
	GateReasonNoEvidence = "no_evidence"
	GateReasonRerankPoor = "rerank_poor"
)

// EvidenceGate is the admission checkpoint for "No Retrieval, No Answer":
// the generative composer is never invoked unless this gate admits the
// retrieved set.
type EvidenceGate struct {
	params Params
}

func NewEvidenceGate(params Params) *EvidenceGate {
	return &EvidenceGate{params: params.normalize()}
}

func (g *EvidenceGate) Evaluate(state *domain.PipelineState) {
	switch {
	case len(state.Candidates) < g.params.MinEvidenceCount:
		state.EvidenceAdmitted = false
		state.EvidenceReason = GateReasonNoEvidence
	case state.RerankQuality == RerankQualityPoor:
		// The cross-encoder judged even the best passage irrelevant;
		// fused scores alone are not trustworthy here.
		state.EvidenceAdmitted = false
		state.EvidenceReason = GateReasonRerankPoor
	case state.TopScore < g.params.EvidenceAdmitThreshold:
		state.EvidenceAdmitted = false
		state.EvidenceReason = GateReasonLowScore
	default:
		state.EvidenceAdmitted = true
		state.EvidenceReason = GateReasonAdmitted
	}
}
