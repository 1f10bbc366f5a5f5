package processor

import "errors"

var (
	// ErrUnknownCustomer is returned by a CustomerDirectory lookup when no
	// account is linked to the provider customer reference.
	ErrUnknownCustomer = errors.New("unknown customer reference")

	// ErrMissingAccountID is returned when a checkout event carries no
	// account_id in its metadata and cannot be correlated to an account.
	ErrMissingAccountID = errors.New("missing account_id in event metadata")

	// ErrDirectoryFailure wraps storage-level failures of a CustomerDirectory.
	ErrDirectoryFailure = errors.New("customer directory operation failed")
)
