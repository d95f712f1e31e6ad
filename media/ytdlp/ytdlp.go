// Package ytdlp fetches media by delegating to the yt-dlp command line tool,
// which handles both HLS manifests and plain progressive files.
package ytdlp

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

const binary = "yt-dlp"

// Fetcher invokes yt-dlp as a subprocess. It implements media.Fetcher.
type Fetcher struct{}

func New() *Fetcher {
	return &Fetcher{}
}

// Available reports whether yt-dlp is on the PATH.
func (f *Fetcher) Available() error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s is not installed or not in PATH: %w", binary, err)
	}
	return nil
}

// Fetch downloads the media at url=u to destPath. See media.Fetcher#Fetch for
// API details.
func (f *Fetcher) Fetch(ctx context.Context, u string, destPath string) error {
	cmd := exec.CommandContext(ctx, binary, "-o", destPath, u)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s exited with error: %v: %s", binary, err, lastLine(out))
	}

	log.Debugf("%s finished: dest=%s", binary, destPath)
	return nil
}

// lastLine returns the last non-empty line of subprocess output, which is
// where yt-dlp puts its error message.
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
