package layout

import (
	"path/filepath"
	"testing"

	"github.com/udemyfetch/udemyfetch/fileutil"
)

func TestSanitize(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"ForbiddenChars", `A/B: C*D`, "A_B_ C_D"},
		{"AllForbidden", `<>:"/\|?*`, "_________"},
		{"Whitespace", "  padded  ", "padded"},
		{"Clean", "Nothing to do", "Nothing to do"},
		{"Windows", `Lecture 5: "Q&A"`, "Lecture 5_ _Q&A_"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.input); got != tc.want {
				t.Errorf("Sanitize(%q): expected %q, got %q", tc.input, tc.want, got)
			}
		})
	}
}

func TestDirectoryNaming(t *testing.T) {
	base := t.TempDir()
	l := New(base)

	coursePath, err := l.CourseDir("Go: The Complete Guide")
	if err != nil {
		t.Fatalf("CourseDir failed: %v", err)
	}
	if filepath.Base(coursePath) != "Go_ The Complete Guide" {
		t.Errorf("unexpected course dir: %q", coursePath)
	}
	if !fileutil.IsDir(coursePath) {
		t.Error("course dir was not created")
	}

	chapterPath, err := l.ChapterDir(coursePath, 3, "Maps & Structs")
	if err != nil {
		t.Fatalf("ChapterDir failed: %v", err)
	}
	if filepath.Base(chapterPath) != "03 - Maps & Structs" {
		t.Errorf("unexpected chapter dir: %q", chapterPath)
	}
	if !fileutil.IsDir(chapterPath) {
		t.Error("chapter dir was not created")
	}

	// Re-creating an existing directory is a no-op, never an error.
	if _, err := l.ChapterDir(coursePath, 3, "Maps & Structs"); err != nil {
		t.Errorf("recreating chapter dir failed: %v", err)
	}
}

func TestLectureFilename(t *testing.T) {
	l := New(t.TempDir())

	if got := l.LectureFilename(7, "Welcome"); got != "007 - Welcome" {
		t.Errorf("expected %q, got %q", "007 - Welcome", got)
	}
	if got := l.LectureFilename(42, "What is DI?"); got != "042 - What is DI_" {
		t.Errorf("expected sanitized name, got %q", got)
	}
}

func TestAttachmentFilename(t *testing.T) {
	l := New(t.TempDir())

	testCases := []struct {
		name      string
		title     string
		sourceURL string
		want      string
	}{
		{"InferFromURL", "Notes", "https://cdn.example.com/a/slides.pdf?sig=abc", "Notes.pdf"},
		{"TitleHasExt", "archive.zip", "https://cdn.example.com/a/b.bin", "archive.zip"},
		{"NoExtAnywhere", "Readme", "https://cdn.example.com/a/readme", "Readme"},
		{"BadURL", "Notes", "://nope", "Notes"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := l.AttachmentFilename(tc.title, tc.sourceURL); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestReserveDisambiguates(t *testing.T) {
	l := New(t.TempDir())

	// Two distinct titles that sanitize to the same string must not share a
	// destination.
	first := l.Reserve("/dst/ch1", "005 - What is DI_")
	second := l.Reserve("/dst/ch1", "005 - What is DI_")
	third := l.Reserve("/dst/ch1", "005 - What is DI_")

	if first != "005 - What is DI_" {
		t.Errorf("first reservation should be untouched, got %q", first)
	}
	if second != "005 - What is DI_ (2)" {
		t.Errorf("expected suffixed name, got %q", second)
	}
	if third != "005 - What is DI_ (3)" {
		t.Errorf("expected suffixed name, got %q", third)
	}

	// Same name in a different directory does not collide.
	if got := l.Reserve("/dst/ch2", "005 - What is DI_"); got != "005 - What is DI_" {
		t.Errorf("different dir should not collide, got %q", got)
	}
}

func TestReserveKeepsExtensionLast(t *testing.T) {
	l := New(t.TempDir())

	l.Reserve("/dst/ch1", "notes.pdf")
	if got := l.Reserve("/dst/ch1", "notes.pdf"); got != "notes (2).pdf" {
		t.Errorf("expected suffix before extension, got %q", got)
	}
}
