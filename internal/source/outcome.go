package source

// OutcomeState classifies a fetch cycle. Partial failure is a normal result,
// not an error path: the records that did arrive still flow downstream.
type OutcomeState string

const (
	StateSuccess        OutcomeState = "SUCCESS"
	StatePartialFailure OutcomeState = "PARTIAL_FAILURE"
	StateFailure        OutcomeState = "FAILURE"
)

// Outcome is what an adapter fetch returns. FailedScopes lists the units that
// produced nothing this cycle; Err is only set when the whole fetch failed.
type Outcome struct {
	Source       Source
	Records      []RawRecord
	FailedScopes []ScopeKey
	Err          error
}

func (o Outcome) State() OutcomeState {
	switch {
	case o.Err != nil && len(o.Records) == 0:
		return StateFailure
	case o.Err != nil || len(o.FailedScopes) > 0:
		return StatePartialFailure
	default:
		return StateSuccess
	}
}
