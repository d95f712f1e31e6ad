package udemy

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// curriculumFields scopes the curriculum query to exactly the fields the
// resolver reads, per raw item type.
const curriculumFields = "fields[lecture]=title,object_index,is_published,sort_order,created,asset,supplementary_assets,is_free" +
	"&fields[quiz]=title,object_index,is_published,sort_order,type" +
	"&fields[practice]=title,object_index,is_published,sort_order,type" +
	"&fields[chapter]=title,object_index,is_published,sort_order" +
	"&fields[asset]=title,filename,asset_type,status,time_estimation,is_external"

// Course is one enrolled course as listed by the vendor.
type Course struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ItemKind is the closed set of curriculum item types.
type ItemKind string

const (
	KindChapter  ItemKind = "chapter"
	KindLecture  ItemKind = "lecture"
	KindQuiz     ItemKind = "quiz"
	KindPractice ItemKind = "practice"
	KindUnknown  ItemKind = "unknown"
)

// Item is one entry of a course curriculum. The sequence order delivered by
// Curriculum is authoritative: it drives chapter numbering and lecture
// filename prefixes.
type Item struct {
	Kind        ItemKind
	RawClass    string // vendor discriminator, kept for diagnostics
	ID          int64
	Title       string
	ObjectIndex int
	Attachments []AttachmentRef // lectures only, in delivery order
}

// AttachmentRef identifies a supplementary asset attached to a lecture.
// External references have no retrievable URL through this API.
type AttachmentRef struct {
	ID         int64
	Title      string
	Filename   string
	IsExternal bool
}

// DisplayTitle returns the attachment's title, falling back to its filename,
// falling back to a generic placeholder.
func (a AttachmentRef) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	if a.Filename != "" {
		return a.Filename
	}
	return "attachment"
}

type rawItem struct {
	Class               string    `json:"_class"`
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	ObjectIndex         int       `json:"object_index"`
	SupplementaryAssets []rawSupp `json:"supplementary_assets"`
}

type rawSupp struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	IsExternal bool   `json:"is_external"`
}

// Courses lists the user's enrolled courses, following pagination to the end.
func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	raws, err := c.fetchAllPages(ctx, c.BaseURL+"/users/me/subscribed-courses?page_size=100")
	if err != nil {
		return nil, err
	}

	courses := make([]Course, 0, len(raws))
	for _, raw := range raws {
		var course Course
		if err := json.Unmarshal(raw, &course); err != nil {
			return nil, fmt.Errorf("%w: decoding course: %v", ErrMalformed, err)
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// Curriculum returns the ordered curriculum of the given course. Item order
// equals the vendor's delivery order across pages.
func (c *Client) Curriculum(ctx context.Context, courseID int64) ([]Item, error) {
	u := fmt.Sprintf("%s/courses/%d/subscriber-curriculum-items?page_size=100&%s",
		c.BaseURL, courseID, curriculumFields)

	raws, err := c.fetchAllPages(ctx, u)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		var ri rawItem
		if err := json.Unmarshal(raw, &ri); err != nil {
			return nil, fmt.Errorf("%w: decoding curriculum item: %v", ErrMalformed, err)
		}
		items = append(items, ri.toItem())
	}
	return items, nil
}

func (ri rawItem) toItem() Item {
	item := Item{
		RawClass:    ri.Class,
		ID:          ri.ID,
		Title:       ri.Title,
		ObjectIndex: ri.ObjectIndex,
	}

	switch ri.Class {
	case "chapter":
		item.Kind = KindChapter
	case "lecture":
		item.Kind = KindLecture
	case "quiz":
		item.Kind = KindQuiz
	case "practice":
		item.Kind = KindPractice
	default:
		log.Debugf("unrecognized curriculum item class: %q (id=%d)", ri.Class, ri.ID)
		item.Kind = KindUnknown
	}

	for _, s := range ri.SupplementaryAssets {
		item.Attachments = append(item.Attachments, AttachmentRef{
			ID:         s.ID,
			Title:      s.Title,
			Filename:   s.Filename,
			IsExternal: s.IsExternal,
		})
	}

	return item
}
