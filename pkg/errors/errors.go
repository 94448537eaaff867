package apperrors

import "errors"

// Authorization errors
var (
	ErrCallerNotManager = errors.New("Must be manager")
	ErrBidderNotAllowed = errors.New("Bidder not permitted")
	ErrLockedOnlyLocker = errors.New("When locked, only the locker can call")
	ErrCallerNotOwner   = errors.New("Must be owner")
	ErrModuleNotEnabled   = errors.New("Module must be initialized")
	ErrAlreadyInitialized = errors.New("Module already initialized")
)

// Configuration and validation errors. Surfaced verbatim; callers and
// observers match on these strings.
var (
	ErrInvalidAdapterConfig = errors.New("price adapter config data invalid")
	ErrInvalidAdapter       = errors.New("Must be valid adapter")
	ErrOldComponentsLength  = errors.New("Old components length must match the current component count")
	ErrNewComponentsLength  = errors.New("New components and params length mismatch")
	ErrDuplicateComponent   = errors.New("Cannot have duplicate components")
	ErrZeroTargetNewAsset   = errors.New("New component target unit must be greater than 0")
	ErrZeroDuration         = errors.New("Rebalance duration must be greater than 0")
	ErrExternalPositions    = errors.New("External positions not allowed")
	ErrAdditionOverflow     = errors.New("addition overflow")
)

// Economic and state errors. Fatal per call but expected under contention;
// callers recompute and resubmit.
var (
	ErrRebalanceNotInProgress = errors.New("Rebalance must be in progress")
	ErrTargetAlreadyMet       = errors.New("Target already met")
	ErrTargetsNotMet          = errors.New("Targets not met or quote asset =~ 0")
	ErrBidExceedsAuctionSize  = errors.New("Bid size exceeds auction quantity")
	ErrQuoteQuantityExceeds   = errors.New("Quote asset quantity exceeds limit")
	ErrQuoteQuantityBelow     = errors.New("Quote asset quantity below limit")
	ErrInsufficientQuoteAsset = errors.New("Insufficient quote asset balance")
	ErrQuoteAssetIsComponent  = errors.New("Cannot bid explicitly on Quote Asset")
	ErrComponentNotInUniverse = errors.New("Component not part of rebalance")
	ErrCannotUnlockEarly      = errors.New("Cannot unlock early unless all targets are met and raiseTargetPercentage is zero")
	ErrZeroBidQuantity        = errors.New("Component quantity must be greater than 0")
)

// Lock contention
var (
	ErrMustNotBeLocked = errors.New("Must not be locked")
)

// Custody
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
)
