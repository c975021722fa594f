package domain

import "errors"

// Error taxonomy shared by adapters and use cases. Callers match with errors.Is.
var (
	ErrConfiguration        = errors.New("configuration error")
	ErrTransientExternal    = errors.New("external service error")
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrValidation           = errors.New("validation error")

	ErrPassInProgress  = errors.New("a pipeline pass is already running")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyDeployed = errors.New("story already deployed")
)

// Issue-tracker deployment failures, one per protocol outcome.
var (
	ErrMisconfiguredEndpoint     = errors.New("issue tracker endpoint misconfigured")
	ErrAuthenticationFailed      = errors.New("issue tracker authentication failed")
	ErrEndpointNotFound          = errors.New("issue tracker endpoint not found")
	ErrUnknownConnection         = errors.New("issue tracker connection error")
	ErrProjectNotFoundOrNoAccess = errors.New("project not found or no access")
	ErrIssueCreationFailed       = errors.New("issue creation failed")
)
