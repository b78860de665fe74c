package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors:
//   - ErrNotFound: no row matched (including rows hidden by a tenant filter)
//   - ErrConflict: a unique key was violated (e.g. evidence_id + version_number)
//   - ErrAlreadyUsed: a natural key is taken (e.g. user email)
//   - ErrUnavailable: backing store temporarily unavailable
//
// Validation failures are not sentinels; use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
