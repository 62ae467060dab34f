package services

import "errors"

// Error taxonomy of the token core. The HTTP layer maps these with errors.Is;
// everything else propagates as an opaque store error.
var (
	// ErrNotFound: device, token or trigger absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCode: presented code failed verification; the token was
	// rejected and cannot be retried.
	ErrInvalidCode = errors.New("invalid code")

	// ErrForeignToken: token owner and cash customer differ while
	// cross-customer clearing is disabled. Kept distinct for auditing; callers
	// see it as an invalid code.
	ErrForeignToken = errors.New("foreign token")

	// ErrNotOpen: the conditional lock hit a token that is no longer OPEN.
	ErrNotOpen = errors.New("token not open")

	// ErrNotLocked: confirm hit a token that is no longer LOCKED.
	ErrNotLocked = errors.New("token not locked")

	// ErrWrongLocker: confirming device is not the one holding the lock.
	ErrWrongLocker = errors.New("device does not hold the lock")

	// ErrIllegalAmountIncrease: cashout confirm tried to raise the amount.
	ErrIllegalAmountIncrease = errors.New("amount may not be increased")

	// ErrCreateExhausted: uniqueness retries used up during creation.
	ErrCreateExhausted = errors.New("token creation retries exhausted")

	// ErrValidation: malformed caller input.
	ErrValidation = errors.New("validation failed")
)
