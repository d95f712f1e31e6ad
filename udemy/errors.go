package udemy

import "errors"

// Error categories surfaced by the client. Callers classify with errors.Is;
// everything else the client returns is wrapped detail around one of these.
var (
	// ErrAuth means the credential was rejected. Never retried; aborts the run.
	ErrAuth = errors.New("authentication rejected")

	// ErrTransient covers timeouts, connection resets and 5xx responses.
	// The client retries these a bounded number of times before giving up.
	ErrTransient = errors.New("transient network failure")

	// ErrNotFound means a well-formed response lacked the expected resource.
	ErrNotFound = errors.New("resource not found")

	// ErrDRMLocked means the asset carries a DRM marker or license token and
	// must never be downloaded.
	ErrDRMLocked = errors.New("asset is DRM protected")

	// ErrMalformed means the response decoded but was missing expected fields,
	// or the server answered with a status the client has no mapping for.
	ErrMalformed = errors.New("malformed API response")
)
