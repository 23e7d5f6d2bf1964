package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Clean exit
	ExitLookupFailed  = 1 // At least one provider returned a sentinel instead of data
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitBrowserError  = 3 // Chrome could not be started
	ExitInternalError = 4 // Unexpected internal error
)
