package entitlement

import "errors"

var (
	ErrEntitlementNotFound = errors.New("entitlement: record not found")
	ErrEmptyAccountID      = errors.New("entitlement: account id is required")
	ErrEmptyPriceRef       = errors.New("entitlement: price reference is required")
	ErrBillingDisabled     = errors.New("entitlement: billing provider integration is disabled")
	ErrPriceNotFound       = errors.New("entitlement: provider price not found")
	ErrProviderFailure     = errors.New("entitlement: provider request failed")
	ErrStoreFailure        = errors.New("entitlement: store operation failed")
	ErrInvalidLevelMatrix  = errors.New("entitlement: invalid level matrix configuration")
)
