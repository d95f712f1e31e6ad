// Package course walks a resolved curriculum in order and materializes it on
// disk: chapters become numbered directories, lectures and attachments become
// files beneath the chapter active at their position in the sequence.
package course

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/udemyfetch/udemyfetch/article"
	"github.com/udemyfetch/udemyfetch/download"
	"github.com/udemyfetch/udemyfetch/layout"
	"github.com/udemyfetch/udemyfetch/media/ytdlp"
	"github.com/udemyfetch/udemyfetch/udemy"
)

// Runner downloads one course per invocation of Run.
type Runner struct {
	Client  *udemy.Client
	Exec    *download.Executor
	Quality string   // requested quality label, "" for best available
	Jobs    int      // parallel lecture workers; <=1 means sequential
	Events  Listener // nil selects LogListener

	toolOnce sync.Once
}

// Failure records one item that could not be downloaded.
type Failure struct {
	Item string
	Err  error
}

// Summary is the outcome of a run. Failed items are also reported through the
// event stream as they happen; they never disappear silently.
type Summary struct {
	Completed int
	Skipped   int
	Failed    []Failure
}

// Run downloads the entire course under root with default settings. It is the
// entry point thin surfaces call.
func Run(ctx context.Context, client *udemy.Client, courseID int64, root string) (*Summary, error) {
	r := &Runner{Client: client}
	return r.Run(ctx, courseID, root)
}

// workItem is one lecture ready for transfer: its destination names were
// reserved during the sequential curriculum walk, so workers share no naming
// state.
type workItem struct {
	lecture     udemy.Item
	chapterPath string
	stem        string // reserved lecture filename, extension pending
	attachments []attachmentWork
}

type attachmentWork struct {
	ref      udemy.AttachmentRef
	name     string // reserved sanitized filename
	needsExt bool   // true when the extension must come from the resolved URL
}

// runState collects per-item outcomes from concurrent workers.
type runState struct {
	courseID int64

	mu        sync.Mutex
	completed int
	skipped   int
	failed    []Failure
}

func (st *runState) complete() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.completed++
}

func (st *runState) skip() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.skipped++
}

func (st *runState) fail(item string, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failed = append(st.failed, Failure{Item: item, Err: err})
}

func (st *runState) summary() *Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	return &Summary{
		Completed: st.completed,
		Skipped:   st.skipped,
		Failed:    st.failed,
	}
}

// Run resolves the course curriculum and downloads every lecture and
// attachment beneath root. Per-item failures are recorded and traversal
// continues; only authentication failures and cancellation abort the run.
func (r *Runner) Run(ctx context.Context, courseID int64, root string) (*Summary, error) {
	if r.Events == nil {
		r.Events = LogListener()
	}
	if r.Exec == nil {
		r.Exec = download.NewExecutor(ytdlp.New())
	}

	c, err := r.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	items, err := r.Client.Curriculum(ctx, courseID)
	if err != nil {
		return nil, err
	}

	lay := layout.New(root)
	coursePath, err := lay.CourseDir(c.Title)
	if err != nil {
		return nil, err
	}

	st := &runState{courseID: courseID}
	work := r.buildWork(lay, coursePath, items, st)

	jobs := r.Jobs
	if jobs < 1 {
		jobs = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	workChan := make(chan workItem)

	for i := 0; i < jobs; i++ {
		g.Go(func() error {
			for w := range workChan {
				if err := r.processLecture(ctx, st, w); err != nil {
					return err
				}
			}
			return nil
		})
	}

	feed := func() {
		defer close(workChan)
		for _, w := range work {
			select {
			case <-ctx.Done():
				// Run aborted. Return early to execute the deferred close.
				return
			case workChan <- w:
			}
		}
	}
	feed()

	err = g.Wait()
	summary := st.summary()

	log.Infof("run complete: completed=%d skipped=%d failed=%d",
		summary.Completed, summary.Skipped, len(summary.Failed))

	return summary, err
}

func (r *Runner) findCourse(ctx context.Context, courseID int64) (*udemy.Course, error) {
	courses, err := r.Client.Courses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		if courses[i].ID == courseID {
			return &courses[i], nil
		}
	}
	return nil, fmt.Errorf("%w: course %d is not among the subscribed courses", udemy.ErrNotFound, courseID)
}

// buildWork walks the curriculum in delivery order, carrying the active
// chapter context and reserving destination names, and returns the ordered
// list of lectures to transfer. Chapter transitions happen entirely here, so
// workers never observe a half-switched chapter.
func (r *Runner) buildWork(lay *layout.Layout, coursePath string, items []udemy.Item, st *runState) []workItem {
	var work []workItem

	chapterIndex := 0
	chapterPath := coursePath
	chapterBroken := false

	for _, item := range items {
		switch item.Kind {
		case udemy.KindChapter:
			chapterIndex++
			p, err := lay.ChapterDir(coursePath, chapterIndex, item.Title)
			if err != nil {
				desc := fmt.Sprintf("chapter %02d %q", chapterIndex, item.Title)
				r.Events(Event{Type: EventFailed, Item: desc, Err: err})
				st.fail(desc, err)
				chapterBroken = true
				continue
			}
			log.Infof("chapter %02d: %s", chapterIndex, item.Title)
			chapterPath = p
			chapterBroken = false

		case udemy.KindLecture:
			stem := lay.Reserve(chapterPath, lay.LectureFilename(item.ObjectIndex, item.Title))
			if chapterBroken {
				desc := fmt.Sprintf("lecture %q", stem)
				err := fmt.Errorf("chapter directory unavailable")
				r.Events(Event{Type: EventFailed, Item: desc, Err: err})
				st.fail(desc, err)
				continue
			}

			w := workItem{
				lecture:     item,
				chapterPath: chapterPath,
				stem:        stem,
			}
			for _, ref := range item.Attachments {
				aw := attachmentWork{ref: ref}
				if !ref.IsExternal {
					title := layout.Sanitize(ref.DisplayTitle())
					aw.needsExt = !strings.Contains(title, ".")
					aw.name = lay.Reserve(chapterPath, title)
				}
				w.attachments = append(w.attachments, aw)
			}
			work = append(work, w)

		case udemy.KindQuiz, udemy.KindPractice:
			// Not downloadable; present only to preserve ordering context.
			log.Debugf("passing over %s: %s", item.Kind, item.Title)

		default:
			log.Warnf("ignoring curriculum item with unrecognized class %q: %s", item.RawClass, item.Title)
		}
	}

	return work
}

// processLecture resolves and transfers one lecture and its attachments. It
// returns a non-nil error only for run-fatal conditions; everything else is
// recorded and swallowed so traversal continues.
func (r *Runner) processLecture(ctx context.Context, st *runState, w workItem) error {
	desc := fmt.Sprintf("lecture %q", w.stem)

	asset, err := r.Client.LectureAsset(ctx, st.courseID, w.lecture.ID)
	if err != nil {
		if runFatal(ctx, err) {
			return err
		}
		r.Events(Event{Type: EventFailed, Item: desc, Err: err})
		st.fail(desc, err)
	} else {
		if err := r.transferLecture(ctx, st, w, desc, asset); err != nil {
			return err
		}
	}

	for _, aw := range w.attachments {
		if err := r.processAttachment(ctx, st, w, aw); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) transferLecture(ctx context.Context, st *runState, w workItem, desc string, asset *udemy.LectureAsset) error {
	if asset.DRM {
		err := fmt.Errorf("%w: cannot be downloaded", udemy.ErrDRMLocked)
		r.Events(Event{Type: EventFailed, Item: desc, Err: err})
		st.fail(desc, err)
		return nil
	}

	if asset.Kind == udemy.AssetArticle && asset.Body != "" {
		dest := filepath.Join(w.chapterPath, w.stem+".html")
		r.Events(Event{Type: EventStarted, Item: desc, Path: dest})

		path, skipped, err := article.Localize(ctx, r.Exec, asset.Body, w.chapterPath, w.stem)
		switch {
		case err != nil:
			r.Events(Event{Type: EventFailed, Item: desc, Err: err})
			st.fail(desc, err)
		case skipped:
			r.Events(Event{Type: EventSkipped, Item: desc, Path: path})
			st.skip()
		default:
			r.Events(Event{Type: EventCompleted, Item: desc, Path: path})
			st.complete()
		}
		return nil
	}

	u, err := asset.URL(r.Quality)
	if err != nil {
		if asset.Kind != udemy.AssetVideo {
			// Articles without bodies and "other" assets carry nothing to
			// transfer. Keep the raw context for diagnosis.
			log.Debugf("no downloadable payload for %s: kind=%s length=%d variants=%d",
				desc, asset.Kind, asset.Length, len(asset.Variants))
			return nil
		}
		r.Events(Event{Type: EventFailed, Item: desc, Err: err})
		st.fail(desc, err)
		return nil
	}

	dest := filepath.Join(w.chapterPath, w.stem)
	r.Events(Event{Type: EventStarted, Item: desc, Path: dest})

	skipped, final, err := r.Exec.FetchVideo(ctx, u, dest)
	switch {
	case err != nil:
		if errors.Is(err, download.ErrToolUnavailable) {
			r.toolOnce.Do(func() {
				log.Errorf("video transfers disabled for this run: %v", err)
			})
		}
		if runFatal(ctx, err) {
			return err
		}
		r.Events(Event{Type: EventFailed, Item: desc, Path: final, Err: err})
		st.fail(desc, err)
	case skipped:
		r.Events(Event{Type: EventSkipped, Item: desc, Path: final})
		st.skip()
	default:
		r.Events(Event{Type: EventCompleted, Item: desc, Path: final})
		st.complete()
	}
	return nil
}

func (r *Runner) processAttachment(ctx context.Context, st *runState, w workItem, aw attachmentWork) error {
	desc := fmt.Sprintf("attachment %q (lecture %q)", aw.ref.DisplayTitle(), w.stem)

	if aw.ref.IsExternal {
		log.Infof("%s is an external link, not a downloadable file", desc)
		return nil
	}

	u, err := r.Client.AttachmentURL(ctx, st.courseID, w.lecture.ID, aw.ref.ID)
	if err != nil {
		if runFatal(ctx, err) {
			return err
		}
		r.Events(Event{Type: EventFailed, Item: desc, Err: err})
		st.fail(desc, err)
		return nil
	}

	name := aw.name
	if aw.needsExt {
		name += layout.ExtFromURL(u)
	}
	dest := filepath.Join(w.chapterPath, name)

	r.Events(Event{Type: EventStarted, Item: desc, Path: dest})

	progress := func(written, total int64) {
		r.Events(Event{Type: EventProgress, Item: desc, Path: dest, Written: written, Total: total})
	}

	skipped, err := r.Exec.FetchFile(ctx, u, dest, progress)
	switch {
	case err != nil:
		if runFatal(ctx, err) {
			return err
		}
		r.Events(Event{Type: EventFailed, Item: desc, Path: dest, Err: err})
		st.fail(desc, err)
	case skipped:
		r.Events(Event{Type: EventSkipped, Item: desc, Path: dest})
		st.skip()
	default:
		r.Events(Event{Type: EventCompleted, Item: desc, Path: dest})
		st.complete()
	}
	return nil
}

// runFatal reports whether err must abort the whole run rather than just the
// current item.
func runFatal(ctx context.Context, err error) bool {
	return errors.Is(err, udemy.ErrAuth) || ctx.Err() != nil
}
