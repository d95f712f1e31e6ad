// Package article materializes article-type lectures on disk. The article
// body is saved as an HTML file and images it embeds are downloaded next to
// it, with the body rewritten to reference the local copies.
package article

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/flytam/filenamify"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"mvdan.cc/xurls/v2"

	"github.com/udemyfetch/udemyfetch/download"
	"github.com/udemyfetch/udemyfetch/fileutil"
)

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {},
}

// Localize writes the article body to <dir>/<stem>.html after saving its
// embedded images into dir and rewriting the body to link to the local
// copies. It is a no-op that reports skipped=true if the HTML file already
// exists. An image that fails to download keeps its remote link; that is not
// an error for the article.
func Localize(ctx context.Context, ex *download.Executor, body, dir, stem string) (string, bool, error) {
	htmlPath := filepath.Join(dir, stem+".html")
	if fileutil.FileExists(htmlPath) {
		log.Debugf("skipping article: file already exists: %s", htmlPath)
		return htmlPath, true, nil
	}

	for _, u := range imageURLs(body) {
		name, err := imageFilename(u)
		if err != nil {
			log.WithError(err).Errorf("failed to convert url to filename: url=%s", u)
			continue
		}

		_, err = ex.FetchFile(ctx, u, filepath.Join(dir, name), nil)
		if err != nil {
			log.WithError(err).Errorf("failed to save article image: url=%s", u)
			continue
		}

		log.Debugf("replacing article image link: (%s) --> (%s)", u, name)
		body = strings.Replace(body, u, name, -1)
	}

	if err := os.WriteFile(htmlPath, []byte(body), 0644); err != nil {
		return "", false, err
	}
	return htmlPath, false, nil
}

// imageURLs returns the image URLs referenced by the article body: `img src`
// attributes plus any raw links whose path has an image extension. Order
// follows first appearance; duplicates are dropped.
func imageURLs(body string) []string {
	var urls []string
	seen := map[string]struct{}{}

	add := func(u string) {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	if doc, err := html.Parse(strings.NewReader(body)); err == nil {
		for _, u := range embeddedImageURLs(doc) {
			add(u)
		}
	}

	for _, u := range xurls.Strict().FindAllString(body, -1) {
		if isImageURL(u) {
			add(u)
		}
	}

	return urls
}

// embeddedImageURLs returns a slice of all image URLs embedded in the given
// html document.
func embeddedImageURLs(doc *html.Node) []string {
	var urls []string

	var iter func(n *html.Node)
	iter = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			for _, a := range n.Attr {
				if a.Key == "src" {
					urls = append(urls, a.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			iter(c)
		}
	}
	iter(doc)

	return urls
}

func isImageURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	_, ok := imageExts[strings.ToLower(path.Ext(parsed.Path))]
	return ok
}

// imageFilename returns the local filename used to save the given image url.
func imageFilename(u string) (string, error) {
	return filenamify.Filenamify(u, filenamify.Options{Replacement: "_"})
}
