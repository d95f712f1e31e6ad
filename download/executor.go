// Package download performs the byte transfer of resolved resources into
// resolved destination paths, with skip-if-exists idempotence.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/udemyfetch/udemyfetch/fileutil"
	"github.com/udemyfetch/udemyfetch/media"
)

// ErrToolUnavailable means the delegated media fetcher is missing from the
// host. Video transfers cannot proceed without it; file transfers can.
var ErrToolUnavailable = errors.New("external media fetcher unavailable")

const chunkSize = 32 * 1024

// Progress is invoked as a transfer advances. total is -1 when the server
// does not advertise a length.
type Progress func(written, total int64)

// Executor transfers resolved URLs to resolved paths. Generic files are
// streamed directly; videos are delegated to the configured media fetcher.
// A present destination file is treated as already downloaded.
type Executor struct {
	hc      *http.Client
	fetcher media.Fetcher
}

func NewExecutor(fetcher media.Fetcher) *Executor {
	return &Executor{
		hc:      &http.Client{},
		fetcher: fetcher,
	}
}

// FetchFile streams the resource at url=u to destPath in bounded chunks,
// reporting progress against the server-advertised length when available.
// It returns skipped=true without touching the network if destPath already
// exists. In-flight bytes go to a temporary name that is renamed into place
// on completion, so a partial transfer never occupies the final path.
func (e *Executor) FetchFile(ctx context.Context, u string, destPath string, progress Progress) (skipped bool, err error) {
	if fileutil.FileExists(destPath) {
		log.Debugf("skipping %s: file already exists: %s", u, destPath)
		return true, nil
	}

	log.Infof("downloading %s", destPath)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return false, err
	}

	rsp, err := e.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %v", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		return false, fmt.Errorf("error status: %s", rsp.Status)
	}

	if err := writeBody(ctx, rsp, destPath, progress); err != nil {
		return false, err
	}

	log.Debugf("downloaded %s (%s)", destPath, humanize.Bytes(uint64(max64(rsp.ContentLength, 0))))
	return false, nil
}

// writeBody copies the response body to a temporary sibling of destPath and
// renames it into place once the copy completes.
func writeBody(ctx context.Context, rsp *http.Response, destPath string, progress Progress) error {
	tmp := fmt.Sprintf("%s.part-%s", destPath, uuid.New().String()[:8])

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	err = copyChunked(ctx, f, rsp.Body, rsp.ContentLength, progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, destPath)
}

// copyChunked copies r to w in bounded chunks, invoking progress after each
// one. A body without an advertised length falls back to a single buffered
// write.
func copyChunked(ctx context.Context, w io.Writer, r io.Reader, total int64, progress Progress) error {
	cr := newContextReader(ctx, r)

	if total < 0 {
		b, err := io.ReadAll(cr)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		if progress != nil {
			progress(int64(len(b)), -1)
		}
		return nil
	}

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, err := cr.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// FetchVideo delegates the transfer of a video URL to the media fetcher. The
// destination always carries the canonical video extension; the returned path
// reflects it. A missing fetcher surfaces as ErrToolUnavailable; a fetcher
// failure is a recoverable per-item error.
func (e *Executor) FetchVideo(ctx context.Context, u string, destPath string) (skipped bool, finalPath string, err error) {
	if !strings.HasSuffix(destPath, ".mp4") {
		destPath += ".mp4"
	}

	if fileutil.FileExists(destPath) {
		log.Debugf("skipping video: file already exists: %s", destPath)
		return true, destPath, nil
	}

	if err := e.fetcher.Available(); err != nil {
		return false, destPath, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	log.Infof("downloading video %s", destPath)
	if err := e.fetcher.Fetch(ctx, u, destPath); err != nil {
		return false, destPath, fmt.Errorf("video fetch failed (DRM-protected lectures cannot be fetched this way): %w", err)
	}

	return false, destPath, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
