package usecase

import "errors"

var (
	// ErrSourceUnavailable: an origin could not be fetched at all this cycle.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrUnparseableRecord: a raw record failed normalization. The wrapped
	// rejection reason is one of the three sentinels below.
	ErrUnparseableRecord = errors.New("unparseable record")
	// ErrIdentityConflict: two records claim the same identity with
	// incompatible identity fields.
	ErrIdentityConflict = errors.New("identity conflict")
	// ErrPersistenceFailure: the durable store rejected a write.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Normalization rejection reasons, always wrapped in ErrUnparseableRecord.
var (
	ErrMissingKickoff  = errors.New("missing kickoff")
	ErrUnparseableDate = errors.New("unparseable date")
	ErrMissingTeams    = errors.New("missing teams")
)
