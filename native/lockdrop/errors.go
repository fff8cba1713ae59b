package lockdrop

import "errors"

var (
	// ErrPhaseViolation is returned when an operation is attempted outside the
	// phase that permits it.
	ErrPhaseViolation = errors.New("lockdrop: operation not permitted in current phase")
	// ErrInvalidDuration is returned for lock durations outside [min, max].
	ErrInvalidDuration = errors.New("lockdrop: lock duration out of bounds")
	// ErrInsufficientPrincipal is returned when a withdrawal exceeds the entry
	// balance or the decaying withdrawal cap.
	ErrInsufficientPrincipal = errors.New("lockdrop: insufficient principal")
	// ErrAlreadyWithdrawn is returned on a second withdrawal from one entry.
	ErrAlreadyWithdrawn = errors.New("lockdrop: withdrawal already used for entry")
	// ErrUnauthorized is returned when a caller other than the owner or the
	// auction contract invokes an operation reserved to them.
	ErrUnauthorized = errors.New("lockdrop: caller not authorized")
	// ErrDownstreamTransferFailed wraps failures reported by the bank, pool or
	// generator collaborators.
	ErrDownstreamTransferFailed = errors.New("lockdrop: downstream transfer failed")
	// ErrNotYetUnlocked is returned when claiming before the unlock timestamp.
	ErrNotYetUnlocked = errors.New("lockdrop: lock not yet expired")
	// ErrArithmeticOverflow guards every multiplication in weight and
	// entitlement math.
	ErrArithmeticOverflow = errors.New("lockdrop: arithmetic overflow")

	ErrInvalidAmount = errors.New("lockdrop: amount must be positive")
	ErrInvalidConfig = errors.New("lockdrop: invalid config")
	ErrEntryNotFound = errors.New("lockdrop: lock entry not found")
	ErrAlreadySet    = errors.New("lockdrop: field already set")
	ErrNilState      = errors.New("lockdrop: state not configured")
	// ErrNotInitialized is returned by every operation before Initialize ran.
	ErrNotInitialized = errors.New("lockdrop: config not initialised")
)

var (
	errBankNotConfigured      = errors.New("lockdrop engine: bank not configured")
	errPoolNotConfigured      = errors.New("lockdrop engine: liquidity pool not configured")
	errGeneratorNotConfigured = errors.New("lockdrop engine: generator not configured")
)
