package kerbalx

import "errors"

var (
	// ErrUnauthenticated is returned when the auth header would be sent empty.
	ErrUnauthenticated = errors.New("unable to make request: user not logged in")
	// ErrConnectionFailed resolves calls that never obtained an HTTP response.
	ErrConnectionFailed = errors.New("unable to connect to KerbalX")
	// ErrMissingToken is returned when a successful login carries no token.
	ErrMissingToken = errors.New("login response carried no token")
	// ErrAuthFailed resolves calls whose 401 forced a logout.
	ErrAuthFailed = errors.New("authorization failed: token not recognized")
	// ErrClientInfoMissing is returned when a client has no name or version.
	ErrClientInfoMissing = errors.New("client info has not been set")
	// ErrNothingToRetry is returned by Retry when no failed request is held.
	ErrNothingToRetry = errors.New("no failed request to retry")
	// ErrUnsupportedMethod is returned for verbs outside GET/POST/PUT/DELETE/HEAD.
	ErrUnsupportedMethod = errors.New("unsupported request method")
)

// UpgradeRequiredError resolves calls answered with 426. The call is
// terminal: its result callback never runs.
type UpgradeRequiredError struct {
	Message string
}

func (e *UpgradeRequiredError) Error() string {
	if e.Message == "" {
		return "upgrade required"
	}
	return "upgrade required: " + e.Message
}
