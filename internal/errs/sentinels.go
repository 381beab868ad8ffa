package errs

// Sentinels for errors.Is. Matching is by kind, so any AppError of the kind matches
// regardless of its message or details.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = New(KindEntityNotFound)

	// ErrVersionConflict indicates optimistic concurrency failure (observed version mismatch).
	ErrVersionConflict = New(KindVersionConflict)

	// ErrMissingID indicates an update was attempted on an entity without an identifier.
	ErrMissingID = New(KindMissingIdentifier)

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = New(KindDuplicateEntity)

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = New(KindInvalidCredentials)

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = New(KindTooManyAttempts)

	// ErrTokenExpired indicates an access token past its expiry.
	ErrTokenExpired = New(KindTokenExpired)

	// ErrTokenInvalid indicates an access token that failed verification.
	ErrTokenInvalid = New(KindTokenInvalid)
)
