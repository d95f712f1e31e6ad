package udemy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// lectureFields scopes the lecture-asset query. The body field feeds article
// lectures; the DRM markers come first in the resolution policy.
const lectureFields = "fields[lecture]=asset,description,download_url" +
	"&fields[asset]=asset_type,stream_urls,download_urls,length,media_license_token,course_is_drmed,body"

// AssetKind classifies a lecture's payload.
type AssetKind string

const (
	AssetVideo   AssetKind = "video"
	AssetArticle AssetKind = "article"
	AssetOther   AssetKind = "other"
)

// Variant is one rendition of a video at a specific quality label.
type Variant struct {
	Label string `json:"label"`
	File  string `json:"file"`
}

// LectureAsset is the resolved payload of one lecture. Variants are ordered
// best-first: numeric labels descending, non-numeric labels after them in
// their original relative order.
type LectureAsset struct {
	Kind     AssetKind
	DRM      bool
	Length   int    // seconds, when reported
	Body     string // article HTML, when Kind == AssetArticle
	Variants []Variant
}

type rawLectureRecord struct {
	Asset rawAsset `json:"asset"`
}

type rawAsset struct {
	AssetType         string               `json:"asset_type"`
	StreamURLs        map[string][]Variant `json:"stream_urls"`
	DownloadURLs      map[string][]Variant `json:"download_urls"`
	Length            int                  `json:"length"`
	MediaLicenseToken string               `json:"media_license_token"`
	CourseIsDrmed     bool                 `json:"course_is_drmed"`
	Body              string               `json:"body"`
}

// LectureAsset fetches and resolves the asset record of one lecture. The DRM
// check runs before any URL extraction: a DRM-flagged asset resolves with
// DRM=true and no variants, regardless of the URLs the response carries.
func (c *Client) LectureAsset(ctx context.Context, courseID, lectureID int64) (*LectureAsset, error) {
	u := fmt.Sprintf("%s/users/me/subscribed-courses/%d/lectures/%d/?%s",
		c.BaseURL, courseID, lectureID, lectureFields)

	b, err := c.getJSON(ctx, u)
	if err != nil {
		return nil, err
	}

	var rec rawLectureRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: decoding lecture asset: %v", ErrMalformed, err)
	}

	raw := rec.Asset
	asset := &LectureAsset{
		Kind:   assetKind(raw.AssetType),
		Length: raw.Length,
		Body:   raw.Body,
	}

	if raw.CourseIsDrmed || raw.MediaLicenseToken != "" {
		asset.DRM = true
		return asset, nil
	}

	// Primary source first; the secondary source is consulted only when the
	// primary yields nothing.
	variants := raw.StreamURLs["Video"]
	if len(variants) == 0 {
		variants = raw.DownloadURLs["Video"]
	}
	asset.Variants = sortVariants(variants)

	return asset, nil
}

func assetKind(assetType string) AssetKind {
	switch assetType {
	case "Video":
		return AssetVideo
	case "Article":
		return AssetArticle
	default:
		return AssetOther
	}
}

// sortVariants orders variants best-first. Labels that parse as integers sort
// descending; labels that do not are excluded from the sort key and settle
// after the numeric ones, keeping their original relative order.
func sortVariants(vs []Variant) []Variant {
	out := make([]Variant, len(vs))
	copy(out, vs)

	sort.SliceStable(out, func(i, j int) bool {
		ni, iok := numericLabel(out[i].Label)
		nj, jok := numericLabel(out[j].Label)
		switch {
		case iok && jok:
			return ni > nj
		case iok:
			return true
		default:
			return false
		}
	})

	return out
}

func numericLabel(label string) (int, bool) {
	n, err := strconv.Atoi(label)
	if err != nil {
		return 0, false
	}
	return n, true
}

// URL returns the variant URL to download. An exact match on the requested
// quality label wins; otherwise, and when quality is "", the best variant is
// picked. It returns ErrDRMLocked for DRM assets and ErrNotFound when no
// variant carries a URL.
func (a *LectureAsset) URL(quality string) (string, error) {
	if a.DRM {
		return "", fmt.Errorf("%w: lecture has a license token or DRM marker", ErrDRMLocked)
	}

	if quality != "" {
		for _, v := range a.Variants {
			if v.Label == quality && v.File != "" {
				return v.File, nil
			}
		}
		// No exact match: fall through to the default pick-highest policy.
	}

	for _, v := range a.Variants {
		if v.File != "" {
			return v.File, nil
		}
	}
	return "", fmt.Errorf("%w: no suitable download link for this lecture", ErrNotFound)
}

// Qualities returns the distinct quality labels available for the asset,
// best-first, deduplicated. DRM assets expose no qualities.
func (a *LectureAsset) Qualities() []string {
	seen := map[string]struct{}{}
	var labels []string
	for _, v := range a.Variants {
		if _, ok := seen[v.Label]; ok {
			continue
		}
		seen[v.Label] = struct{}{}
		labels = append(labels, v.Label)
	}
	return labels
}

// LectureMedia resolves the downloadable media URL of one lecture, honoring
// the requested quality label ("" for best available).
func (c *Client) LectureMedia(ctx context.Context, courseID, lectureID int64, quality string) (string, error) {
	asset, err := c.LectureAsset(ctx, courseID, lectureID)
	if err != nil {
		return "", err
	}
	return asset.URL(quality)
}

// Qualities lists the quality labels available for one lecture, for UI
// enumeration. A DRM-locked lecture returns ErrDRMLocked.
func (c *Client) Qualities(ctx context.Context, courseID, lectureID int64) ([]string, error) {
	asset, err := c.LectureAsset(ctx, courseID, lectureID)
	if err != nil {
		return nil, err
	}
	if asset.DRM {
		return nil, fmt.Errorf("%w: lecture has a license token or DRM marker", ErrDRMLocked)
	}
	return asset.Qualities(), nil
}

type rawSuppRecord struct {
	DownloadURLs map[string][]Variant `json:"download_urls"`
}

// AttachmentURL resolves the direct download URL of a supplementary asset.
// A structurally valid response without a file URL returns ErrNotFound,
// distinct from network failures.
func (c *Client) AttachmentURL(ctx context.Context, courseID, lectureID, assetID int64) (string, error) {
	u := fmt.Sprintf("%s/users/me/subscribed-courses/%d/lectures/%d/supplementary-assets/%d/?fields[asset]=download_urls",
		c.BaseURL, courseID, lectureID, assetID)

	b, err := c.getJSON(ctx, u)
	if err != nil {
		return "", err
	}

	var rec rawSuppRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return "", fmt.Errorf("%w: decoding supplementary asset: %v", ErrMalformed, err)
	}

	files := rec.DownloadURLs["File"]
	if len(files) == 0 || files[0].File == "" {
		return "", fmt.Errorf("%w: attachment has no download link", ErrNotFound)
	}
	return files[0].File, nil
}
