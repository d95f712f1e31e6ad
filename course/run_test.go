package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/udemyfetch/udemyfetch/download"
	"github.com/udemyfetch/udemyfetch/udemy"
)

// stubFetcher implements media.Fetcher; it records the URLs it was asked to
// fetch and writes a marker file.
type stubFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *stubFetcher) Available() error { return nil }

func (f *stubFetcher) Fetch(ctx context.Context, u string, destPath string) error {
	f.mu.Lock()
	f.urls = append(f.urls, u)
	f.mu.Unlock()
	return os.WriteFile(destPath, []byte("video:"+u), 0644)
}

func (f *stubFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

// eventLog is a concurrency-safe Listener.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (el *eventLog) listener() Listener {
	return func(ev Event) {
		el.mu.Lock()
		el.events = append(el.events, ev)
		el.mu.Unlock()
	}
}

func (el *eventLog) count(typ EventType) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	n := 0
	for _, ev := range el.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// vendorServer simulates the content API for one course:
// chapter "Intro" > video lecture with one attachment and one external link,
// article lecture, quiz; chapter "Advanced" > DRM-locked lecture.
func vendorServer(t *testing.T, fileHits *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/users/me/subscribed-courses", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 1, "next": "", "results": [
			{"id": 101, "title": "Go Course", "url": "/course/go"}
		]}`)
	})

	mux.HandleFunc("/courses/101/subscriber-curriculum-items", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 6, "next": "", "results": [
			{"_class": "chapter", "id": 10, "title": "Intro"},
			{"_class": "lecture", "id": 1, "title": "Welcome", "object_index": 1,
			 "supplementary_assets": [
				{"id": 11, "title": "Notes", "is_external": false},
				{"id": 12, "title": "Docs Link", "is_external": true}
			 ]},
			{"_class": "lecture", "id": 2, "title": "Reading", "object_index": 2},
			{"_class": "quiz", "id": 5, "title": "Checkpoint"},
			{"_class": "chapter", "id": 20, "title": "Advanced"},
			{"_class": "lecture", "id": 3, "title": "Deep Dive", "object_index": 3}
		]}`)
	})

	mux.HandleFunc("/users/me/subscribed-courses/101/lectures/1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"asset": {
			"asset_type": "Video",
			"stream_urls": {"Video": [
				{"label": "720", "file": "https://cdn/720.mp4"},
				{"label": "1080", "file": "https://cdn/1080.mp4"}
			]}
		}}`)
	})

	mux.HandleFunc("/users/me/subscribed-courses/101/lectures/2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"asset": {
			"asset_type": "Article",
			"body": "<p>read me</p>"
		}}`)
	})

	mux.HandleFunc("/users/me/subscribed-courses/101/lectures/3/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"asset": {
			"asset_type": "Video",
			"course_is_drmed": true,
			"stream_urls": {"Video": [{"label": "720", "file": "https://cdn/locked.mp4"}]}
		}}`)
	})

	var server *httptest.Server
	mux.HandleFunc("/users/me/subscribed-courses/101/lectures/1/supplementary-assets/11/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"download_urls": {"File": [{"file": %q}]}}`, server.URL+"/files/slides.pdf?sig=x")
	})

	mux.HandleFunc("/files/slides.pdf", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fileHits, 1)
		w.Write([]byte("pdf-bytes"))
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runOnce(t *testing.T, serverURL, root string, jobs int) (*Summary, *stubFetcher, *eventLog) {
	t.Helper()

	client := udemy.NewClient("tok")
	client.BaseURL = serverURL

	fetcher := &stubFetcher{}
	el := &eventLog{}

	r := &Runner{
		Client: client,
		Exec:   download.NewExecutor(fetcher),
		Jobs:   jobs,
		Events: el.listener(),
	}

	summary, err := r.Run(context.Background(), 101, root)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return summary, fetcher, el
}

func TestRunMaterializesCourse(t *testing.T) {
	var fileHits int32
	server := vendorServer(t, &fileHits)
	root := t.TempDir()

	summary, fetcher, _ := runOnce(t, server.URL, root, 1)

	if summary.Completed != 3 {
		t.Errorf("expected 3 completed (video, article, attachment), got %d", summary.Completed)
	}
	if summary.Skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", summary.Skipped)
	}
	if len(summary.Failed) != 1 {
		t.Fatalf("expected 1 failure (DRM lecture), got %+v", summary.Failed)
	}
	if !errors.Is(summary.Failed[0].Err, udemy.ErrDRMLocked) {
		t.Errorf("expected DRM failure, got %v", summary.Failed[0].Err)
	}

	intro := filepath.Join(root, "Go Course", "01 - Intro")

	video, err := os.ReadFile(filepath.Join(intro, "001 - Welcome.mp4"))
	if err != nil {
		t.Fatalf("video missing: %v", err)
	}
	if string(video) != "video:https://cdn/1080.mp4" {
		t.Errorf("default quality must pick the highest label, got %q", video)
	}

	if _, err := os.Stat(filepath.Join(intro, "002 - Reading.html")); err != nil {
		t.Errorf("article missing: %v", err)
	}

	pdf, err := os.ReadFile(filepath.Join(intro, "Notes.pdf"))
	if err != nil {
		t.Fatalf("attachment missing (extension should come from the URL path): %v", err)
	}
	if string(pdf) != "pdf-bytes" {
		t.Errorf("unexpected attachment content: %q", pdf)
	}

	// The DRM chapter directory exists, but nothing was written into it.
	advanced := filepath.Join(root, "Go Course", "02 - Advanced")
	entries, err := os.ReadDir(advanced)
	if err != nil {
		t.Fatalf("chapter dir missing: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("DRM lecture must not produce files, found %d", len(entries))
	}

	if fetcher.calls() != 1 {
		t.Errorf("expected exactly one video fetch, got %d", fetcher.calls())
	}
	if got := atomic.LoadInt32(&fileHits); got != 1 {
		t.Errorf("expected exactly one attachment transfer, got %d", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	var fileHits int32
	server := vendorServer(t, &fileHits)
	root := t.TempDir()

	runOnce(t, server.URL, root, 1)
	firstHits := atomic.LoadInt32(&fileHits)

	// Second run against an unchanged course, this time with parallel
	// workers: zero additional byte transfers.
	summary, fetcher, el := runOnce(t, server.URL, root, 2)

	if summary.Completed != 0 {
		t.Errorf("second run completed %d items, want 0", summary.Completed)
	}
	if summary.Skipped != 3 {
		t.Errorf("second run skipped %d items, want 3", summary.Skipped)
	}
	if len(summary.Failed) != 1 {
		t.Errorf("DRM failure must not disappear on reruns, got %+v", summary.Failed)
	}

	if fetcher.calls() != 0 {
		t.Errorf("second run invoked the video fetcher %d times", fetcher.calls())
	}
	if got := atomic.LoadInt32(&fileHits); got != firstHits {
		t.Errorf("second run transferred bytes: %d -> %d hits", firstHits, got)
	}
	if el.count(EventSkipped) != 3 {
		t.Errorf("expected 3 skipped events, got %d", el.count(EventSkipped))
	}
}

func TestRunRequestedQuality(t *testing.T) {
	var fileHits int32
	server := vendorServer(t, &fileHits)
	root := t.TempDir()

	client := udemy.NewClient("tok")
	client.BaseURL = server.URL

	fetcher := &stubFetcher{}
	r := &Runner{
		Client:  client,
		Exec:    download.NewExecutor(fetcher),
		Quality: "720",
	}

	if _, err := r.Run(context.Background(), 101, root); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	video, err := os.ReadFile(filepath.Join(root, "Go Course", "01 - Intro", "001 - Welcome.mp4"))
	if err != nil {
		t.Fatalf("video missing: %v", err)
	}
	if string(video) != "video:https://cdn/720.mp4" {
		t.Errorf("exact quality match must win, got %q", video)
	}
}

func TestRunUnknownCourse(t *testing.T) {
	var fileHits int32
	server := vendorServer(t, &fileHits)

	client := udemy.NewClient("tok")
	client.BaseURL = server.URL

	r := &Runner{Client: client, Exec: download.NewExecutor(&stubFetcher{})}
	_, err := r.Run(context.Background(), 999, t.TempDir())
	if !errors.Is(err, udemy.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unsubscribed course, got %v", err)
	}
}
