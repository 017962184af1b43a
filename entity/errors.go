package entity

import "errors"

// Storage-level sentinels. The stores translate driver errors into these
// so the domain layer never inspects driver types.
var (
	// ErrNotFound: the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateScan: the accepted-scan uniqueness constraint fired.
	ErrDuplicateScan = errors.New("duplicate scan")
	// ErrTokenSpent: the conditional commit matched no document, meaning
	// the token went inactive or ran out of capacity concurrently.
	ErrTokenSpent = errors.New("token spent")
	// ErrStorageUnavailable: transient storage failure (timeout, connection
	// loss). Safe for the caller to retry; never a policy rejection.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Issuance validation sentinels.
var (
	ErrInvalidWindow = errors.New("invalid validity window")
	ErrUnknownScope  = errors.New("unknown scope")
	ErrNotAllowed    = errors.New("not allowed")
)
