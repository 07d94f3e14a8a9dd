package constants

import "errors"

// Configuration errors.
var (
	ErrPortalRequired       = errors.New("portal is required")
	ErrClientIDRequired     = errors.New("client ID is required")
	ErrClientSecretRequired = errors.New("client secret is required")
	ErrNoPortalConfigured   = errors.New("no portal configured, run 'b24 login' first")
	ErrNotLoggedIn          = errors.New("not logged in, run 'b24 login' first")
	ErrConfigKeyUnknown     = errors.New("unknown configuration key")
)

// CLI validation errors.
var (
	ErrMethodRequired        = errors.New("a REST method name is required")
	ErrEntityRequired        = errors.New("an entity name is required (lead, deal or contact)")
	ErrUnknownEntity         = errors.New("unknown entity")
	ErrInvalidDataArgument   = errors.New("--data must be a JSON object")
	ErrInvalidFilterArgument = errors.New("--filter must be FIELD=VALUE")
	ErrInvalidLeadID         = errors.New("lead ID must be an integer")
)
