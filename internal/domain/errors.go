package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidPrompt   = errors.New("invalid prompt")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrProviderFailure = errors.New("provider failure")

	// ErrPollTimeout marks a job abandoned by the poll loop after the attempt
	// ceiling, as opposed to a failure the remote gateway reported itself.
	ErrPollTimeout = errors.New("video generation timed out while polling")
)

// UpgradeRequiredError signals that the caller's plan does not permit the
// requested operation. It is a distinct type so the presentation layer can
// route to an upgrade flow without matching on message text.
type UpgradeRequiredError struct {
	Message string
}

func (e *UpgradeRequiredError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "a premium plan is required for video generation"
}

// IsUpgradeRequired reports whether err (or anything it wraps) is an
// entitlement rejection.
func IsUpgradeRequired(err error) bool {
	var target *UpgradeRequiredError
	return errors.As(err, &target)
}
