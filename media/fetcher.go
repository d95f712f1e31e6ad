package media

import "context"

// Fetcher retrieves a remote media resource and saves it to disk. Most
// implementations delegate to an external tool that understands streaming
// manifests as well as plain files.
type Fetcher interface {
	// Fetch retrieves the media at url=u and writes it to destPath. The
	// destination directory is assumed to exist.
	Fetch(ctx context.Context, u string, destPath string) error

	// Available reports whether the fetcher can run on this host. A non-nil
	// error carries an actionable description of what is missing.
	Available() error
}
