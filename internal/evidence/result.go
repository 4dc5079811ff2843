package evidence

// Outcome tags an AnalysisResult.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeNoIdentifierFound Outcome = "no_identifier_found"
	OutcomeInauthentic       Outcome = "authenticity_check_failed"
	OutcomeTransient         Outcome = "transient_io_error"
)

// AnalysisResult is produced once per submission and never mutated.
//
// ExtractedID is set only for OutcomeSuccess. Detail, Region and Score are
// diagnostic and never drive decisions.
type AnalysisResult struct {
	Outcome     Outcome `json:"outcome"`
	ExtractedID string  `json:"extracted_id,omitempty"`
	Region      string  `json:"region,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Detail      string  `json:"detail,omitempty"`
}

func Success(id, region string, score float64) AnalysisResult {
	return AnalysisResult{Outcome: OutcomeSuccess, ExtractedID: id, Region: region, Score: score}
}

func NoIdentifierFound(detail string) AnalysisResult {
	return AnalysisResult{Outcome: OutcomeNoIdentifierFound, Detail: detail}
}

func AuthenticityCheckFailed(id, region string, score float64, detail string) AnalysisResult {
	// The id is kept for operator review only.
	return AnalysisResult{Outcome: OutcomeInauthentic, ExtractedID: id, Region: region, Score: score, Detail: detail}
}

func TransientIOError(detail string) AnalysisResult {
	return AnalysisResult{Outcome: OutcomeTransient, Detail: detail}
}

// IsSuccess reports whether an identifier was extracted and authenticated.
func (r AnalysisResult) IsSuccess() bool { return r.Outcome == OutcomeSuccess }

// IsStrike reports whether the result consumes one attempt from the budget.
func (r AnalysisResult) IsStrike() bool {
	return r.Outcome == OutcomeNoIdentifierFound || r.Outcome == OutcomeInauthentic
}
