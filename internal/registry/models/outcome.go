package models

// Outcome is the closed result of a submission. Business refusals are
// outcomes, not Go errors; OutcomeError is only paired with a non-nil error.
type Outcome string

const (
	// OutcomeSuccess: the request was stored as PENDING.
	OutcomeSuccess Outcome = "success"
	// OutcomeReview: an identical request is already PENDING.
	OutcomeReview Outcome = "review"
	// OutcomeApproved: an identical request is already APPROVED and current.
	OutcomeApproved Outcome = "approved"
	// OutcomeRejected: the subject is not eligible for this request.
	OutcomeRejected Outcome = "rejected"
	// OutcomeExpired: the referenced record has lapsed.
	OutcomeExpired Outcome = "expired"
	// OutcomeError: malformed input or infrastructure failure.
	OutcomeError Outcome = "error"
)

// IsRefusal reports whether the outcome refused the submission without error.
func (o Outcome) IsRefusal() bool {
	switch o {
	case OutcomeReview, OutcomeApproved, OutcomeRejected, OutcomeExpired:
		return true
	}
	return false
}

func (o Outcome) String() string { return string(o) }
