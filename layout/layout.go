// Package layout maps course metadata to sanitized, collision-free
// filesystem paths under a download root.
package layout

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/udemyfetch/udemyfetch/fileutil"
)

// sanitizer replaces every character the target filesystems reject.
var sanitizer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// Sanitize strips forbidden filename characters, replacing each with an
// underscore, and trims surrounding whitespace.
func Sanitize(name string) string {
	return strings.TrimSpace(sanitizer.Replace(name))
}

// Layout derives destination paths for one download run. Name reservations
// (see Reserve) make sanitization collisions deterministic, so it must not be
// shared between runs.
type Layout struct {
	base string

	mu   sync.Mutex
	seen map[string]int // dir + "\x00" + name -> reservation count
}

func New(base string) *Layout {
	return &Layout{
		base: base,
		seen: map[string]int{},
	}
}

// CourseDir returns the directory for a course under the download root,
// creating it if needed.
func (l *Layout) CourseDir(courseTitle string) (string, error) {
	p := filepath.Join(l.base, Sanitize(courseTitle))
	if err := fileutil.EnsureDir(p); err != nil {
		return "", err
	}
	return p, nil
}

// ChapterDir returns the directory for chapter number index under coursePath,
// creating it if needed. Chapter numbering is 1-based traversal order.
func (l *Layout) ChapterDir(coursePath string, index int, chapterTitle string) (string, error) {
	name := fmt.Sprintf("%02d - %s", index, Sanitize(chapterTitle))
	p := filepath.Join(coursePath, name)
	if err := fileutil.EnsureDir(p); err != nil {
		return "", err
	}
	return p, nil
}

// LectureFilename returns the extensionless filename for a lecture. The
// caller appends an extension once the content kind is known.
func (l *Layout) LectureFilename(index int, lectureTitle string) string {
	return Sanitize(fmt.Sprintf("%03d - %s", index, lectureTitle))
}

// AttachmentFilename returns the filename for an attachment. A title that
// already carries a dot-extension is used as-is; otherwise an extension is
// inferred from the trailing path segment of the source URL, if present.
func (l *Layout) AttachmentFilename(title, sourceURL string) string {
	if !strings.Contains(title, ".") {
		title += ExtFromURL(sourceURL)
	}
	return Sanitize(title)
}

// ExtFromURL returns the dot-extension of the trailing path segment of
// sourceURL, "" when the path offers none. Query strings do not count.
func ExtFromURL(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	return path.Ext(path.Base(u.Path))
}

// Reserve claims name within dir and returns it, disambiguated with a " (n)"
// suffix if a previous reservation in the same dir sanitized to the same
// string. Reservations happen during the sequential curriculum walk, so the
// suffixes are stable across runs and worker counts.
func (l *Layout) Reserve(dir, name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := dir + "\x00" + name
	n := l.seen[key]
	l.seen[key] = n + 1
	if n == 0 {
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", stem, n+1, ext)
}
